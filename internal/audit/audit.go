// Package audit records an append-only trail of lifecycle events per action.
// Every mutating gateway operation appends here; the audit-trail endpoint
// reads the recorded log back instead of reconstructing it from state.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Stage event names, in causal order.
const (
	EventDeclared             = "action_declared"
	EventRiskAssessed         = "risk_assessed"
	EventApprovalApproved     = "approval_approved"
	EventApprovalRejected     = "approval_rejected"
	EventExecutionStarted     = "execution_started"
	EventVerificationComplete = "verification_completed"
	EventRollbackComplete     = "rollback_completed"
)

// Stream states for the Kafka forwarding pipeline.
const (
	StreamPending    = "pending"
	StreamInProgress = "in_progress"
	StreamDone       = "done"
	StreamFailed     = "failed"
)

// ErrNotFound is returned when no trail exists for a requested action.
var ErrNotFound = errors.New("audit trail not found")

// Event is one recorded lifecycle transition.
type Event struct {
	ID       string                 `json:"id,omitempty"`
	ActionID string                 `json:"action_id"`
	Event    string                 `json:"event"`
	Actor    string                 `json:"actor"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Ts       time.Time              `json:"timestamp"`
}

// Log is the append-only audit store.
type Log interface {
	Append(ctx context.Context, ev *Event) error
	// Trail returns the events for an action in append order.
	Trail(ctx context.Context, actionID string) ([]Event, error)
	Ping(ctx context.Context) error
}

// PendingSource is the subset of log behavior the streamer needs: claim
// not-yet-streamed events and record the outcome per event.
type PendingSource interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkStreamResult(ctx context.Context, id string, ok bool) error
}

// NewEventID returns a freshly-generated UUID string.
func NewEventID() string {
	return uuid.New().String()
}
