package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/execution"
	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/risk"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

func newGateway(seed int64) *service.Gateway {
	return service.New(
		store.NewMemoryStore(),
		audit.NewMemoryLog(),
		risk.NewSeededRuleAssessor(seed),
		execution.NewSeededSimEngine(seed),
		"test",
	)
}

func TestDeclareApproveExecuteVerifyFlow(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(1)

	declared, err := gw.Declare(ctx, service.DeclareRequest{
		WorkflowID: "wf_refund_v1",
		ActionType: "payment.process",
		Target:     &models.Target{System: "stripe", Resource: "charges", Operation: "refund"},
		Payload:    map[string]interface{}{"amount": 2500, "currency": "USD"},
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if declared.Status != models.StatusPendingApproval {
		t.Fatalf("status = %s, want pending_approval", declared.Status)
	}
	if declared.RiskAssessment == nil || declared.ApprovalRequest == nil {
		t.Fatalf("declaration missing risk assessment or approval request")
	}
	if declared.RiskAssessment.RiskScore < 0 || declared.RiskAssessment.RiskScore > 1 {
		t.Fatalf("risk score %v out of range", declared.RiskAssessment.RiskScore)
	}

	approved, err := gw.Approve(ctx, declared.ActionID, "user_1", "looks fine")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}

	outcome, err := gw.Execute(ctx, declared.ActionID, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Execution.Status != models.ExecSuccess {
		t.Fatalf("execution status = %s", outcome.Execution.Status)
	}
	if outcome.Verification == nil || outcome.Verification.OverallStatus != models.Verified {
		t.Fatalf("verification missing or failed: %+v", outcome.Verification)
	}
	if outcome.Action.Status != models.StatusVerified {
		t.Fatalf("final status = %s, want verified", outcome.Action.Status)
	}

	trail, err := gw.AuditTrail(ctx, declared.ActionID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	wantEvents := []string{
		audit.EventDeclared,
		audit.EventRiskAssessed,
		audit.EventApprovalApproved,
		audit.EventExecutionStarted,
		audit.EventVerificationComplete,
	}
	if len(trail) != len(wantEvents) {
		t.Fatalf("expected %d events, got %d", len(wantEvents), len(trail))
	}
	for i, want := range wantEvents {
		if trail[i].Event != want {
			t.Fatalf("event %d = %s, want %s", i, trail[i].Event, want)
		}
	}
}

func TestDeclareRequiresTarget(t *testing.T) {
	gw := newGateway(1)
	if _, err := gw.Declare(context.Background(), service.DeclareRequest{}); err == nil {
		t.Fatalf("expected error for empty declaration")
	}
}

func TestDeclareWebhookShorthand(t *testing.T) {
	gw := newGateway(1)
	declared, err := gw.Declare(context.Background(), service.DeclareRequest{
		Service:          "payment-api",
		Namespace:        "production",
		Status:           "degraded",
		ErrorRate:        "5%",
		RecentDeployment: true,
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if declared.Target.System != "payment-api" {
		t.Fatalf("target system = %s", declared.Target.System)
	}
	if declared.Context.Namespace != "production" || !declared.Context.RecentDeployment {
		t.Fatalf("context not populated: %+v", declared.Context)
	}
	if declared.WorkflowID != "wf_custom_v1" {
		t.Fatalf("workflow default missing: %s", declared.WorkflowID)
	}
	// degraded production service with a fresh deployment always crosses the
	// human-review threshold
	if declared.RiskAssessment.RiskScore <= models.MediumRiskThreshold {
		t.Fatalf("score %v unexpectedly low for degraded production context", declared.RiskAssessment.RiskScore)
	}
	if declared.ApprovalRequest.ApprovalType != models.ApprovalHumanRequired {
		t.Fatalf("approval type = %s, want human_required", declared.ApprovalRequest.ApprovalType)
	}
}

func TestExecuteWithoutApproval(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(1)
	declared, err := gw.Declare(ctx, service.DeclareRequest{Service: "stripe"})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := gw.Execute(ctx, declared.ActionID, ""); !errors.Is(err, service.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}

func TestExecuteAfterRejection(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(1)
	declared, err := gw.Declare(ctx, service.DeclareRequest{Service: "stripe"})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	rejected, err := gw.Reject(ctx, declared.ActionID, "user_2", "not in maintenance window")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if _, err := gw.Execute(ctx, declared.ActionID, ""); !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	gw := newGateway(1)
	if _, err := gw.Execute(context.Background(), "act_missing", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLastDecisionWins(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(1)
	declared, err := gw.Declare(ctx, service.DeclareRequest{Service: "stripe"})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := gw.Approve(ctx, declared.ActionID, "user_1", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rejected, err := gw.Reject(ctx, declared.ActionID, "user_2", "changed my mind")
	if err != nil {
		t.Fatalf("reject after approve: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if rejected.ApprovalDecision.Approver != "user_2" {
		t.Fatalf("decision not overwritten: %+v", rejected.ApprovalDecision)
	}
}

func TestRollbackIsTerminal(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(1)
	declared, err := gw.Declare(ctx, service.DeclareRequest{Service: "stripe"})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := gw.Approve(ctx, declared.ActionID, "user_1", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := gw.Execute(ctx, declared.ActionID, ""); err != nil {
		t.Fatalf("execute: %v", err)
	}
	rolled, err := gw.Rollback(ctx, declared.ActionID, "wrong target")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.Status != models.StatusRolledBack {
		t.Fatalf("status = %s, want rolled_back", rolled.Status)
	}
	if len(rolled.Rollback.CompensatingActions) == 0 {
		t.Fatalf("compensating actions missing")
	}
}

func TestAuditTrailUnknownAction(t *testing.T) {
	gw := newGateway(1)
	if _, err := gw.AuditTrail(context.Background(), "act_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExplainWording(t *testing.T) {
	a := &models.Action{
		ActionID:   "act_1",
		WorkflowID: "wf_refund_v1",
		Initiator:  models.Initiator{Type: "scheduled", Source: "n8n_scheduler"},
		RiskAssessment: &models.RiskAssessment{
			RiskScore: 0.42,
			RiskLevel: models.RiskMedium,
			RiskFactors: []models.RiskFactor{
				{Factor: "amount_exceeds_threshold"},
				{Factor: "customer_account_age"},
			},
		},
		ApprovalRequest: &models.ApprovalRequest{ApprovalType: models.ApprovalHumanRequired},
	}
	exp := service.BuildExplanation(a)
	if !strings.Contains(exp.Explanation, "scheduled") || !strings.Contains(exp.Explanation, "wf_refund_v1") {
		t.Fatalf("explanation missing initiator/workflow: %s", exp.Explanation)
	}
	if !strings.Contains(exp.Explanation, "medium risk level (42%)") {
		t.Fatalf("explanation missing risk summary: %s", exp.Explanation)
	}
	if !strings.Contains(exp.Explanation, "Human approval is required") {
		t.Fatalf("explanation missing approval gate: %s", exp.Explanation)
	}
	if len(exp.Factors) != 2 || exp.Factors[0] != "amount_exceeds_threshold" {
		t.Fatalf("factors = %v", exp.Factors)
	}
}

func TestExplainWithoutAssessment(t *testing.T) {
	exp := service.BuildExplanation(&models.Action{ActionID: "act_1"})
	if !strings.Contains(exp.Explanation, "No risk assessment") {
		t.Fatalf("unexpected explanation: %s", exp.Explanation)
	}
}

func TestHealthReportsUptime(t *testing.T) {
	gw := newGateway(1)
	h := gw.Health(context.Background())
	if h.Status != "healthy" {
		t.Fatalf("status = %s", h.Status)
	}
	if h.Version != "test" {
		t.Fatalf("version = %s", h.Version)
	}
	if !strings.HasSuffix(h.Uptime, "m") {
		t.Fatalf("uptime format: %s", h.Uptime)
	}
}

func TestFormatUptime(t *testing.T) {
	d := 7*24*time.Hour + 14*time.Hour + 32*time.Minute
	if got := service.FormatUptime(d); got != "7d 14h 32m" {
		t.Fatalf("FormatUptime = %s", got)
	}
}
