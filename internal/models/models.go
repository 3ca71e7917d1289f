// Package models contains the canonical records of the Action Transaction
// Protocol: an Action and the sub-records attached to it as it moves through
// declare, risk-assess, approve, execute and verify stages.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle statuses an Action can report.
const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusExecuting       = "executing"
	StatusExecuted        = "executed"
	StatusVerified        = "verified"
	StatusRolledBack      = "rolled_back"
)

// Risk levels and recommendations produced by the risk assessor.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"

	RecommendAutoApprove = "auto_approve"
	RecommendHumanReview = "human_review"

	ApprovalAuto          = "auto_approve"
	ApprovalHumanRequired = "human_required"

	DecisionApproved = "approved"
	DecisionRejected = "rejected"

	ExecSuccess = "success"
	ExecFailure = "failure"
	ExecPartial = "partial"

	Verified           = "verified"
	VerificationFailed = "verification_failed"
)

// Risk thresholds. A single consistent set is used everywhere: declare,
// approval routing and seed data.
const (
	HighRiskThreshold   = 0.5
	MediumRiskThreshold = 0.3
)

// RiskLevelFor maps a risk score onto a level.
func RiskLevelFor(score float64) string {
	switch {
	case score > HighRiskThreshold:
		return RiskHigh
	case score > MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Initiator identifies who or what requested an action.
type Initiator struct {
	Type      string `json:"type"` // human | scheduled | ai_agent | webhook
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// Target identifies the external system and resource an action affects.
type Target struct {
	System    string `json:"system"`
	Resource  string `json:"resource"`
	Operation string `json:"operation"`
}

// Context carries business metadata plus a derived copy of the lifecycle
// status. The top-level Action.Status is the source of truth; Context.Status
// is written only by SyncStatus.
type Context struct {
	BusinessReason   string   `json:"business_reason,omitempty"`
	RelatedEntities  []string `json:"related_entities,omitempty"`
	PriorActions     []string `json:"prior_actions,omitempty"`
	Service          string   `json:"service,omitempty"`
	Namespace        string   `json:"namespace,omitempty"`
	Status           string   `json:"status,omitempty"`
	ErrorRate        string   `json:"error_rate,omitempty"`
	RecentDeployment bool     `json:"recent_deployment,omitempty"`
	TriggeredBy      string   `json:"triggered_by,omitempty"`
}

// RiskFactor is one weighted contributor to a risk score.
type RiskFactor struct {
	Factor   string  `json:"factor"`
	Severity string  `json:"severity"`
	Weight   float64 `json:"weight"`
	Details  string  `json:"details"`
}

// SimilarActions aggregates historical outcomes of comparable actions.
type SimilarActions struct {
	Past30Days            int     `json:"past_30_days"`
	SuccessRate           float64 `json:"success_rate"`
	AverageCompletionTime string  `json:"average_completion_time"`
}

// RiskAssessment is attached once risk evaluation completes.
type RiskAssessment struct {
	ActionID       string         `json:"action_id"`
	Timestamp      time.Time      `json:"timestamp"`
	RiskScore      float64        `json:"risk_score"`
	RiskLevel      string         `json:"risk_level"`
	RiskFactors    []RiskFactor   `json:"risk_factors"`
	SimilarActions SimilarActions `json:"similar_actions"`
	Recommendation string         `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning,omitempty"`
}

// ApprovalRequest is attached when an action needs a decision.
type ApprovalRequest struct {
	ActionID     string    `json:"action_id"`
	RiskScore    float64   `json:"risk_score"`
	ApprovalType string    `json:"approval_type"`
	Approvers    []string  `json:"approvers"`
	Deadline     time.Time `json:"deadline"`
	Priority     string    `json:"priority"` // low | normal | high
	Reason       string    `json:"reason,omitempty"`
}

// ApprovalDecision records the outcome of the approval gate.
type ApprovalDecision struct {
	ActionID  string    `json:"action_id"`
	Decision  string    `json:"decision"` // approved | rejected
	Approver  string    `json:"approver"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// SideEffect records one observable consequence of execution.
type SideEffect struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

// ExecutionResult is attached once the execution engine has run the action.
type ExecutionResult struct {
	ActionID    string                 `json:"action_id"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Status      string                 `json:"status"` // success | failure | partial
	Result      map[string]interface{} `json:"result,omitempty"`
	SideEffects []SideEffect           `json:"side_effects,omitempty"`
}

// VerificationCheck is one post-execution consistency check.
type VerificationCheck struct {
	Type    string `json:"type"`
	Status  string `json:"status"` // pass | fail
	Details string `json:"details,omitempty"`
}

// VerificationResult confirms (or not) that expected side effects occurred.
type VerificationResult struct {
	ActionID      string              `json:"action_id"`
	Timestamp     time.Time           `json:"timestamp"`
	OverallStatus string              `json:"overall_status"` // verified | verification_failed
	Checks        []VerificationCheck `json:"checks"`
	Confidence    float64             `json:"confidence"`
}

// Rollback is the terminal record of a compensating action.
type Rollback struct {
	ActionID            string    `json:"action_id"`
	Timestamp           time.Time `json:"timestamp"`
	Reason              string    `json:"reason,omitempty"`
	Status              string    `json:"status"`
	CompensatingActions []string  `json:"compensating_actions,omitempty"`
}

// Action is one governed unit of work. The optional sub-records trace its
// progression; Status is a deterministic projection of which are present.
type Action struct {
	ActionID           string                 `json:"action_id"`
	WorkflowID         string                 `json:"workflow_id"`
	Initiator          Initiator              `json:"initiator"`
	Timestamp          time.Time              `json:"timestamp"`
	ActionType         string                 `json:"action_type"`
	Target             Target                 `json:"target"`
	Payload            map[string]interface{} `json:"payload,omitempty"`
	Context            Context                `json:"context"`
	RiskAssessment     *RiskAssessment        `json:"risk_assessment,omitempty"`
	ApprovalRequest    *ApprovalRequest       `json:"approval_request,omitempty"`
	ApprovalDecision   *ApprovalDecision      `json:"approval_decision,omitempty"`
	ExecutionResult    *ExecutionResult       `json:"execution_result,omitempty"`
	VerificationResult *VerificationResult    `json:"verification_result,omitempty"`
	Rollback           *Rollback              `json:"rollback,omitempty"`
	Status             string                 `json:"status"`
}

// NewActionID returns an id in the form act_<8 hex chars>.
func NewActionID() string {
	return "act_" + uuid.New().String()[:8]
}

// NewSessionID returns an id in the form session_<8 hex chars>.
func NewSessionID() string {
	return "session_" + uuid.New().String()[:8]
}

// DeriveStatus projects the lifecycle status from the attached sub-records.
// Rollback and rejection are terminal; an execution without a completion time
// is still executing.
func DeriveStatus(a *Action) string {
	switch {
	case a.Rollback != nil:
		return StatusRolledBack
	case a.ApprovalDecision != nil && a.ApprovalDecision.Decision == DecisionRejected:
		return StatusRejected
	case a.VerificationResult != nil && a.VerificationResult.OverallStatus == Verified:
		return StatusVerified
	case a.ExecutionResult != nil && a.ExecutionResult.CompletedAt == nil:
		return StatusExecuting
	case a.ExecutionResult != nil:
		return StatusExecuted
	case a.ApprovalDecision != nil:
		return StatusApproved
	default:
		return StatusPendingApproval
	}
}

// SyncStatus recomputes Status from the attached sub-records and mirrors it
// into Context.Status. It is the only writer of either field after declare.
func (a *Action) SyncStatus() {
	a.Status = DeriveStatus(a)
	a.Context.Status = a.Status
}

// Clone returns a deep copy so stores never alias caller-held memory.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Payload = cloneMap(a.Payload)
	cp.Context.RelatedEntities = cloneStrings(a.Context.RelatedEntities)
	cp.Context.PriorActions = cloneStrings(a.Context.PriorActions)
	if a.RiskAssessment != nil {
		ra := *a.RiskAssessment
		ra.RiskFactors = append([]RiskFactor(nil), a.RiskAssessment.RiskFactors...)
		cp.RiskAssessment = &ra
	}
	if a.ApprovalRequest != nil {
		req := *a.ApprovalRequest
		req.Approvers = cloneStrings(a.ApprovalRequest.Approvers)
		cp.ApprovalRequest = &req
	}
	if a.ApprovalDecision != nil {
		dec := *a.ApprovalDecision
		cp.ApprovalDecision = &dec
	}
	if a.ExecutionResult != nil {
		ex := *a.ExecutionResult
		ex.Result = cloneMap(a.ExecutionResult.Result)
		ex.SideEffects = append([]SideEffect(nil), a.ExecutionResult.SideEffects...)
		if a.ExecutionResult.CompletedAt != nil {
			t := *a.ExecutionResult.CompletedAt
			ex.CompletedAt = &t
		}
		cp.ExecutionResult = &ex
	}
	if a.VerificationResult != nil {
		vr := *a.VerificationResult
		vr.Checks = append([]VerificationCheck(nil), a.VerificationResult.Checks...)
		cp.VerificationResult = &vr
	}
	if a.Rollback != nil {
		rb := *a.Rollback
		rb.CompensatingActions = cloneStrings(a.Rollback.CompensatingActions)
		cp.Rollback = &rb
	}
	return &cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
