package client

import (
	"context"
	"time"

	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/execution"
	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/risk"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

// MockConfig parameterizes the simulated backend.
type MockConfig struct {
	// Store backs the simulation. A fresh MemoryStore is created when nil, so
	// tests can inject an isolated, pre-populated store.
	Store *store.MemoryStore

	// Seed loads the sample fixture actions on construction.
	Seed bool

	// Latency is the artificial delay applied to every call. It models
	// network delay only; correctness never depends on it. Zero in tests.
	Latency time.Duration

	// RandSeed, when non-zero, makes the simulated risk scores and execution
	// results reproducible.
	RandSeed int64
}

// MockClient simulates the gateway entirely in memory. Unlike the real
// gateway it does not keep an audit log: the trail is reconstructed live from
// whichever sub-records are attached, in fixed causal stage order.
type MockClient struct {
	store   *store.MemoryStore
	gw      *service.Gateway
	engine  *execution.SimEngine
	latency time.Duration
	started time.Time
}

func NewMockClient(cfg MockConfig) *MockClient {
	st := cfg.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	var assessor *risk.RuleAssessor
	var engine *execution.SimEngine
	if cfg.RandSeed != 0 {
		assessor = risk.NewSeededRuleAssessor(cfg.RandSeed)
		engine = execution.NewSeededSimEngine(cfg.RandSeed)
	} else {
		assessor = risk.NewRuleAssessor()
		engine = execution.NewSimEngine()
	}
	m := &MockClient{
		store:   st,
		gw:      service.New(st, nil, assessor, engine, "1.0.0"),
		engine:  engine,
		latency: cfg.Latency,
		started: time.Now().UTC(),
	}
	if cfg.Seed {
		for _, a := range SeedActions() {
			_, _ = st.PutAction(context.Background(), a)
		}
	}
	return m
}

func (m *MockClient) delay(ctx context.Context) error {
	if m.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockClient) GetHealth(ctx context.Context) (service.Health, error) {
	if err := m.delay(ctx); err != nil {
		return service.Health{}, err
	}
	return service.Health{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    service.FormatUptime(time.Since(m.started)),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (m *MockClient) GetActions(ctx context.Context) ([]*models.Action, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	return m.store.ListActions(ctx)
}

func (m *MockClient) DeclareAction(ctx context.Context, req service.DeclareRequest) (*models.Action, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	return m.gw.Declare(ctx, req)
}

func (m *MockClient) ApproveAction(ctx context.Context, id, approver, reason string) (*Result, error) {
	return m.decide(ctx, id, models.DecisionApproved, approver, reason, "Manual approval")
}

func (m *MockClient) RejectAction(ctx context.Context, id, approver, reason string) (*Result, error) {
	return m.decide(ctx, id, models.DecisionRejected, approver, reason, "Manual rejection")
}

func (m *MockClient) decide(ctx context.Context, id, decision, approver, reason, defaultReason string) (*Result, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = defaultReason
	}
	updated, err := m.store.AttachApproval(ctx, id, models.ApprovalDecision{
		ActionID:  id,
		Decision:  decision,
		Approver:  approver,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}
	return &Result{ActionID: id, Status: updated.Status, Action: updated}, nil
}

func (m *MockClient) ExecuteAction(ctx context.Context, id, webhookURL string) (*Result, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	a, err := m.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	var decision models.ApprovalDecision
	if a.ApprovalDecision != nil {
		decision = *a.ApprovalDecision
	}
	result, err := m.engine.Execute(ctx, a, decision, webhookURL)
	if err != nil {
		return nil, err
	}
	updated, err := m.store.AttachExecution(ctx, id, result)
	if err != nil {
		return nil, err
	}
	return &Result{ActionID: id, Status: updated.Status, Action: updated, Execution: updated.ExecutionResult}, nil
}

func (m *MockClient) VerifyAction(ctx context.Context, id string) (*Result, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	vr := models.VerificationResult{
		ActionID:      id,
		Timestamp:     time.Now().UTC(),
		OverallStatus: models.Verified,
		Checks: []models.VerificationCheck{
			{Type: "state_consistency", Status: "pass", Details: "System state verified"},
			{Type: "downstream_effects", Status: "pass", Details: "All downstream effects completed"},
		},
		Confidence: 0.95,
	}
	updated, err := m.store.AttachVerification(ctx, id, vr)
	if err != nil {
		return nil, err
	}
	return &Result{ActionID: id, Status: updated.Status, Action: updated, Verification: updated.VerificationResult}, nil
}

func (m *MockClient) RollbackAction(ctx context.Context, id, reason string) (*Result, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Manual rollback"
	}
	rb := models.Rollback{
		ActionID:            id,
		Timestamp:           time.Now().UTC(),
		Reason:              reason,
		Status:              "completed",
		CompensatingActions: []string{"state_restored", "audit_updated"},
	}
	updated, err := m.store.AttachRollback(ctx, id, rb)
	if err != nil {
		return nil, err
	}
	return &Result{ActionID: id, Status: updated.Status, Action: updated, Rollback: updated.Rollback}, nil
}

// GetAuditTrail derives the trail from the attached sub-records: declaration
// first, risk assessment second, then the conditional stages in causal order.
func (m *MockClient) GetAuditTrail(ctx context.Context, id string) (*AuditTrail, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	a, err := m.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	events := []audit.Event{{
		ActionID: id,
		Event:    audit.EventDeclared,
		Actor:    a.Initiator.Source,
		Details:  map[string]interface{}{"workflow_id": a.WorkflowID},
		Ts:       a.Timestamp,
	}}
	if a.RiskAssessment != nil {
		events = append(events, audit.Event{
			ActionID: id,
			Event:    audit.EventRiskAssessed,
			Actor:    "risk_engine",
			Details: map[string]interface{}{
				"risk_score":     a.RiskAssessment.RiskScore,
				"recommendation": a.RiskAssessment.Recommendation,
			},
			Ts: a.RiskAssessment.Timestamp,
		})
	}
	if a.ApprovalDecision != nil {
		event := audit.EventApprovalApproved
		if a.ApprovalDecision.Decision == models.DecisionRejected {
			event = audit.EventApprovalRejected
		}
		events = append(events, audit.Event{
			ActionID: id,
			Event:    event,
			Actor:    a.ApprovalDecision.Approver,
			Details:  map[string]interface{}{"reason": a.ApprovalDecision.Reason},
			Ts:       a.ApprovalDecision.Timestamp,
		})
	}
	if a.ExecutionResult != nil {
		events = append(events, audit.Event{
			ActionID: id,
			Event:    audit.EventExecutionStarted,
			Actor:    "execution_engine",
			Details:  map[string]interface{}{"status": a.ExecutionResult.Status},
			Ts:       a.ExecutionResult.StartedAt,
		})
	}
	if a.VerificationResult != nil {
		events = append(events, audit.Event{
			ActionID: id,
			Event:    audit.EventVerificationComplete,
			Actor:    "verification_engine",
			Details:  map[string]interface{}{"status": a.VerificationResult.OverallStatus},
			Ts:       a.VerificationResult.Timestamp,
		})
	}
	if a.Rollback != nil {
		events = append(events, audit.Event{
			ActionID: id,
			Event:    audit.EventRollbackComplete,
			Actor:    "execution_engine",
			Details:  map[string]interface{}{"reason": a.Rollback.Reason},
			Ts:       a.Rollback.Timestamp,
		})
	}
	return &AuditTrail{ActionID: id, Events: events}, nil
}

func (m *MockClient) GetExplanation(ctx context.Context, id string) (*service.Explanation, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	a, err := m.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	return service.BuildExplanation(a), nil
}
