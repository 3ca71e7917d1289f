// Package service orchestrates the action lifecycle: declare, risk-assess,
// approve, execute, verify, roll back. Handlers stay thin; everything
// stateful happens here against the injected store, audit log and engines.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/atplabs/atp-gateway/internal/approval"
	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/execution"
	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/risk"
	"github.com/atplabs/atp-gateway/internal/store"
	"github.com/atplabs/atp-gateway/internal/verification"
)

// ErrNotApproved is returned when execution is requested for an action that
// has no approval decision yet.
var ErrNotApproved = errors.New("action not approved")

// Gateway wires the ATP components together.
type Gateway struct {
	store    store.Store
	auditLog audit.Log
	assessor risk.Assessor
	engine   execution.Engine
	version  string
	started  time.Time
}

func New(st store.Store, auditLog audit.Log, assessor risk.Assessor, engine execution.Engine, version string) *Gateway {
	if version == "" {
		version = "1.0.0"
	}
	return &Gateway{
		store:    st,
		auditLog: auditLog,
		assessor: assessor,
		engine:   engine,
		version:  version,
		started:  time.Now().UTC(),
	}
}

// Health reports gateway liveness plus store reachability.
type Health struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (g *Gateway) Health(ctx context.Context) Health {
	status := "healthy"
	if err := g.store.Ping(ctx); err != nil {
		status = "degraded"
	}
	return Health{
		Status:    status,
		Version:   g.version,
		Uptime:    FormatUptime(time.Since(g.started)),
		Timestamp: time.Now().UTC(),
	}
}

// FormatUptime renders a duration as "7d 14h 32m".
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
}

func (g *Gateway) ListActions(ctx context.Context) ([]*models.Action, error) {
	return g.store.ListActions(ctx)
}

func (g *Gateway) GetAction(ctx context.Context, id string) (*models.Action, error) {
	return g.store.GetAction(ctx, id)
}

// DeclareRequest carries the partial action fields a caller may supply.
// Everything omitted gets a sensible default; Service doubles as the webhook
// shorthand the monitoring integration sends.
type DeclareRequest struct {
	WorkflowID string                 `json:"workflow_id,omitempty"`
	Initiator  *models.Initiator      `json:"initiator,omitempty"`
	ActionType string                 `json:"action_type,omitempty"`
	Target     *models.Target         `json:"target,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Context    *models.Context        `json:"context,omitempty"`

	// Webhook shorthand fields (service monitor integration).
	Service          string `json:"service,omitempty"`
	Namespace        string `json:"namespace,omitempty"`
	Status           string `json:"status,omitempty"`
	ErrorRate        string `json:"error_rate,omitempty"`
	RecentDeployment bool   `json:"recent_deployment,omitempty"`
}

// Declare creates a fully-formed action: id, risk assessment and approval
// request synthesized, status pending_approval. The caller's request is never
// mutated.
func (g *Gateway) Declare(ctx context.Context, req DeclareRequest) (*models.Action, error) {
	if req.Service == "" && (req.Target == nil || req.Target.System == "") {
		return nil, fmt.Errorf("service or target.system required")
	}

	a := buildAction(req)
	assessment, err := g.assessor.Assess(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("assess risk: %w", err)
	}
	assessment.ActionID = a.ActionID
	a.RiskAssessment = &assessment
	ar := approval.BuildRequest(a.ActionID, assessment)
	a.ApprovalRequest = &ar

	stored, err := g.store.PutAction(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("store action: %w", err)
	}

	g.appendAudit(ctx, &audit.Event{
		ActionID: stored.ActionID,
		Event:    audit.EventDeclared,
		Actor:    stored.Initiator.Source,
		Details:  map[string]interface{}{"workflow_id": stored.WorkflowID},
		Ts:       stored.Timestamp,
	})
	g.appendAudit(ctx, &audit.Event{
		ActionID: stored.ActionID,
		Event:    audit.EventRiskAssessed,
		Actor:    "risk_engine",
		Details: map[string]interface{}{
			"risk_score":     assessment.RiskScore,
			"recommendation": assessment.Recommendation,
		},
		Ts: assessment.Timestamp,
	})
	return stored, nil
}

func buildAction(req DeclareRequest) *models.Action {
	a := &models.Action{
		ActionID:   models.NewActionID(),
		WorkflowID: req.WorkflowID,
		ActionType: req.ActionType,
		Timestamp:  time.Now().UTC(),
		Status:     models.StatusPendingApproval,
	}
	if a.WorkflowID == "" {
		a.WorkflowID = "wf_custom_v1"
	}
	if a.ActionType == "" {
		a.ActionType = "api.call"
	}
	if req.Initiator != nil {
		a.Initiator = *req.Initiator
	} else {
		a.Initiator = models.Initiator{
			Type:      "human",
			Source:    "current_user",
			SessionID: models.NewSessionID(),
		}
	}
	if req.Target != nil {
		a.Target = *req.Target
	}
	if a.Target.System == "" {
		a.Target.System = firstNonEmpty(req.Service, "unknown")
	}
	if a.Target.Resource == "" {
		a.Target.Resource = "unknown"
	}
	if a.Target.Operation == "" {
		a.Target.Operation = "unknown"
	}
	if req.Payload != nil {
		a.Payload = req.Payload
	} else {
		a.Payload = map[string]interface{}{}
	}
	if req.Context != nil {
		a.Context = *req.Context
	}
	if a.Context.Service == "" {
		a.Context.Service = firstNonEmpty(req.Service, a.Target.System)
	}
	if a.Context.Namespace == "" {
		a.Context.Namespace = firstNonEmpty(req.Namespace, "custom")
	}
	if a.Context.Status == "" {
		a.Context.Status = firstNonEmpty(req.Status, "pending")
	}
	if a.Context.ErrorRate == "" {
		a.Context.ErrorRate = req.ErrorRate
	}
	if req.RecentDeployment {
		a.Context.RecentDeployment = true
	}
	if a.Context.BusinessReason == "" {
		a.Context.BusinessReason = "Custom action"
	}
	return a
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Approve attaches an approved decision. Calling it again overwrites the
// previous decision silently; there is no idempotency guard.
func (g *Gateway) Approve(ctx context.Context, id, approver, reason string) (*models.Action, error) {
	return g.decide(ctx, id, models.DecisionApproved, approver, reason, "Manual approval")
}

// Reject attaches a rejected decision; rejection is terminal for execution.
func (g *Gateway) Reject(ctx context.Context, id, approver, reason string) (*models.Action, error) {
	return g.decide(ctx, id, models.DecisionRejected, approver, reason, "Manual rejection")
}

func (g *Gateway) decide(ctx context.Context, id, decision, approver, reason, defaultReason string) (*models.Action, error) {
	if reason == "" {
		reason = defaultReason
	}
	d := models.ApprovalDecision{
		ActionID:  id,
		Decision:  decision,
		Approver:  approver,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	}
	updated, err := g.store.AttachApproval(ctx, id, d)
	if err != nil {
		return nil, err
	}
	event := audit.EventApprovalApproved
	if decision == models.DecisionRejected {
		event = audit.EventApprovalRejected
	}
	g.appendAudit(ctx, &audit.Event{
		ActionID: id,
		Event:    event,
		Actor:    approver,
		Details:  map[string]interface{}{"reason": reason},
		Ts:       d.Timestamp,
	})
	return updated, nil
}

// ExecuteOutcome bundles the execution result with the verification that ran
// immediately after it.
type ExecuteOutcome struct {
	Action       *models.Action             `json:"action"`
	Execution    models.ExecutionResult     `json:"execution"`
	Verification *models.VerificationResult `json:"verification,omitempty"`
}

// Execute runs an approved action through the execution engine, attaches the
// result and verifies the outcome. Unknown ids fail with store.ErrNotFound,
// unapproved actions with ErrNotApproved, rejected ones with store.ErrRejected.
func (g *Gateway) Execute(ctx context.Context, id, webhookURL string) (*ExecuteOutcome, error) {
	a, err := g.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ApprovalDecision == nil {
		return nil, ErrNotApproved
	}
	if a.ApprovalDecision.Decision == models.DecisionRejected {
		return nil, store.ErrRejected
	}

	result, err := g.engine.Execute(ctx, a, *a.ApprovalDecision, webhookURL)
	if err != nil {
		return nil, fmt.Errorf("execute action: %w", err)
	}
	updated, err := g.store.AttachExecution(ctx, id, result)
	if err != nil {
		return nil, err
	}
	g.appendAudit(ctx, &audit.Event{
		ActionID: id,
		Event:    audit.EventExecutionStarted,
		Actor:    "execution_engine",
		Details:  map[string]interface{}{"status": result.Status},
		Ts:       result.StartedAt,
	})

	vr := verification.Verify(updated, result)
	updated, err = g.store.AttachVerification(ctx, id, vr)
	if err != nil {
		return nil, err
	}
	g.appendAudit(ctx, &audit.Event{
		ActionID: id,
		Event:    audit.EventVerificationComplete,
		Actor:    "verification_engine",
		Details:  map[string]interface{}{"status": vr.OverallStatus},
		Ts:       vr.Timestamp,
	})
	return &ExecuteOutcome{Action: updated, Execution: result, Verification: &vr}, nil
}

// VerifyAction re-runs verification against the recorded execution result.
func (g *Gateway) VerifyAction(ctx context.Context, id string) (*models.Action, error) {
	a, err := g.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	var exec models.ExecutionResult
	if a.ExecutionResult != nil {
		exec = *a.ExecutionResult
	} else {
		exec = models.ExecutionResult{ActionID: id, Status: models.ExecSuccess}
	}
	vr := verification.Verify(a, exec)
	updated, err := g.store.AttachVerification(ctx, id, vr)
	if err != nil {
		return nil, err
	}
	g.appendAudit(ctx, &audit.Event{
		ActionID: id,
		Event:    audit.EventVerificationComplete,
		Actor:    "verification_engine",
		Details:  map[string]interface{}{"status": vr.OverallStatus},
		Ts:       vr.Timestamp,
	})
	return updated, nil
}

// Rollback attaches the terminal compensating-action record.
func (g *Gateway) Rollback(ctx context.Context, id, reason string) (*models.Action, error) {
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
	updated, err := g.store.AttachRollback(ctx, id, rb)
	if err != nil {
		return nil, err
	}
	g.appendAudit(ctx, &audit.Event{
		ActionID: id,
		Event:    audit.EventRollbackComplete,
		Actor:    "execution_engine",
		Details:  map[string]interface{}{"reason": reason},
		Ts:       rb.Timestamp,
	})
	return updated, nil
}

// AuditTrail returns the recorded append-only trail for an action.
func (g *Gateway) AuditTrail(ctx context.Context, id string) ([]audit.Event, error) {
	trail, err := g.auditLog.Trail(ctx, id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return trail, nil
}

// Explanation is a natural-language rendering of why an action carries the
// risk it does.
type Explanation struct {
	ActionID      string                 `json:"action_id"`
	Explanation   string                 `json:"explanation"`
	Factors       []string               `json:"factors"`
	RiskBreakdown *models.RiskAssessment `json:"risk_breakdown,omitempty"`
}

func (g *Gateway) Explain(ctx context.Context, id string) (*Explanation, error) {
	a, err := g.store.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildExplanation(a), nil
}

// BuildExplanation synthesizes the explanation text from the initiator and
// risk assessment fields. Shared with the simulated client so both paths
// produce identical wording.
func BuildExplanation(a *models.Action) *Explanation {
	exp := &Explanation{ActionID: a.ActionID, Factors: []string{}}
	if a.RiskAssessment == nil {
		exp.Explanation = "No risk assessment is available for this action yet"
		return exp
	}
	ra := a.RiskAssessment
	gate := "The action can proceed with automatic approval."
	if a.ApprovalRequest != nil && a.ApprovalRequest.ApprovalType == models.ApprovalHumanRequired {
		gate = "Human approval is required due to risk assessment."
	}
	exp.Explanation = fmt.Sprintf(
		"This action was initiated via %s from %s as part of the %s workflow. The system assessed a %s risk level (%.0f%%) based on %d risk factors. %s",
		a.Initiator.Type, a.Initiator.Source, a.WorkflowID,
		ra.RiskLevel, ra.RiskScore*100, len(ra.RiskFactors), gate,
	)
	for _, f := range ra.RiskFactors {
		exp.Factors = append(exp.Factors, f.Factor)
	}
	exp.RiskBreakdown = ra
	return exp
}

// appendAudit logs rather than fails: a lost audit event must not abort the
// transition that already committed.
func (g *Gateway) appendAudit(ctx context.Context, ev *audit.Event) {
	if g.auditLog == nil {
		return
	}
	if err := g.auditLog.Append(ctx, ev); err != nil {
		log.Printf("[gateway] append audit %s/%s: %v", ev.ActionID, ev.Event, err)
	}
}
