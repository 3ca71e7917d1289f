package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/auth"
	"github.com/atplabs/atp-gateway/internal/execution"
	"github.com/atplabs/atp-gateway/internal/httpserver"
	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/risk"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

func newTestServer(t *testing.T, jwtSecret string) *httptest.Server {
	t.Helper()
	gw := service.New(
		store.NewMemoryStore(),
		audit.NewMemoryLog(),
		risk.NewSeededRuleAssessor(1),
		execution.NewSeededSimEngine(1),
		"test",
	)
	srv := httptest.NewServer(httpserver.New(gw, jwtSecret).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func declareTestAction(t *testing.T, srv *httptest.Server) models.Action {
	t.Helper()
	resp := postJSON(t, srv.URL+"/atp/v1/actions/declare", map[string]interface{}{
		"action_type": "payment.process",
		"target":      map[string]string{"system": "stripe", "resource": "charges", "operation": "refund"},
		"payload":     map[string]interface{}{"amount": 2500, "currency": "USD"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("declare status = %d", resp.StatusCode)
	}
	var a models.Action
	decodeBody(t, resp, &a)
	return a
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/atp/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h service.Health
	decodeBody(t, resp, &h)
	if h.Status != "healthy" || h.Version != "test" {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestDeclareAndListFlow(t *testing.T) {
	srv := newTestServer(t, "")
	a := declareTestAction(t, srv)
	if a.ActionID == "" || a.Status != models.StatusPendingApproval {
		t.Fatalf("unexpected declaration: %+v", a)
	}
	if a.RiskAssessment == nil || a.ApprovalRequest == nil {
		t.Fatalf("declaration missing sub-records")
	}

	resp, err := http.Get(srv.URL + "/atp/v1/actions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var actions []models.Action
	decodeBody(t, resp, &actions)
	if len(actions) != 1 || actions[0].ActionID != a.ActionID {
		t.Fatalf("unexpected list: %+v", actions)
	}

	resp, err = http.Get(srv.URL + "/atp/v1/actions/" + a.ActionID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	var single models.Action
	decodeBody(t, resp, &single)
	if single.ActionID != a.ActionID {
		t.Fatalf("unexpected action: %+v", single)
	}

	missing, err := http.Get(srv.URL + "/atp/v1/actions/act_missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing action = %d, want 404", missing.StatusCode)
	}
}

func TestDeclareRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t, "")
	resp := postJSON(t, srv.URL+"/atp/v1/actions/declare", map[string]interface{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestApproveExecuteFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")
	a := declareTestAction(t, srv)

	resp := postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/approve", map[string]string{
		"approver": "user_1",
		"reason":   "ok",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	var approveBody struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &approveBody)
	if approveBody.Status != models.StatusApproved {
		t.Fatalf("status = %s", approveBody.Status)
	}
	if approveBody.Message == "" {
		t.Fatalf("approve message missing")
	}

	resp = postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/execute", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d", resp.StatusCode)
	}
	var execBody struct {
		Execution    *models.ExecutionResult    `json:"execution"`
		Verification *models.VerificationResult `json:"verification"`
	}
	decodeBody(t, resp, &execBody)
	if execBody.Execution == nil || execBody.Execution.Status != models.ExecSuccess {
		t.Fatalf("unexpected execution: %+v", execBody.Execution)
	}
	if execBody.Verification == nil || execBody.Verification.OverallStatus != models.Verified {
		t.Fatalf("unexpected verification: %+v", execBody.Verification)
	}

	// audit trail is public and reflects the full flow
	trailResp, err := http.Get(srv.URL + "/atp/v1/actions/" + a.ActionID + "/audit-trail")
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	var trailBody struct {
		Events []audit.Event `json:"audit_trail"`
	}
	decodeBody(t, trailResp, &trailBody)
	if len(trailBody.Events) != 5 {
		t.Fatalf("expected 5 audit events, got %d", len(trailBody.Events))
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t, "")

	// unknown id -> 404
	resp := postJSON(t, srv.URL+"/atp/v1/actions/act_missing/approve", map[string]string{"approver": "user_1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("approve unknown = %d, want 404", resp.StatusCode)
	}

	// not approved -> 403
	a := declareTestAction(t, srv)
	resp = postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/execute", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("execute unapproved = %d, want 403", resp.StatusCode)
	}

	// rejected -> 409
	resp = postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/reject", map[string]string{"approver": "user_2"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject = %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/execute", map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("execute rejected = %d, want 409", resp.StatusCode)
	}
}

func TestApproveRequiresApprover(t *testing.T) {
	srv := newTestServer(t, "")
	a := declareTestAction(t, srv)
	resp := postJSON(t, srv.URL+"/atp/v1/actions/"+a.ActionID+"/approve", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExplainEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	a := declareTestAction(t, srv)
	resp, err := http.Get(srv.URL + "/atp/v1/actions/" + a.ActionID + "/explain")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	var exp service.Explanation
	decodeBody(t, resp, &exp)
	if exp.ActionID != a.ActionID || exp.Explanation == "" {
		t.Fatalf("unexpected explanation: %+v", exp)
	}
	if exp.RiskBreakdown == nil {
		t.Fatalf("risk breakdown missing")
	}
}

func TestWriteRoutesRequireToken(t *testing.T) {
	const secret = "test-secret"
	srv := newTestServer(t, secret)

	// no token -> 401
	resp := postJSON(t, srv.URL+"/atp/v1/actions/declare", map[string]interface{}{"service": "stripe"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", resp.StatusCode)
	}

	// garbage token -> 401
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/atp/v1/actions/declare", bytes.NewReader([]byte(`{"service":"stripe"}`)))
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", resp.StatusCode)
	}

	// valid token -> 201
	token, err := auth.NewToken("user_1", secret)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/atp/v1/actions/declare", bytes.NewReader([]byte(`{"service":"stripe"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("valid token = %d, want 201", resp.StatusCode)
	}

	// read routes stay public
	healthResp, err := http.Get(srv.URL + "/atp/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	healthResp.Body.Close()
	if healthResp.StatusCode != http.StatusOK {
		t.Fatalf("health with auth enabled = %d", healthResp.StatusCode)
	}
}
