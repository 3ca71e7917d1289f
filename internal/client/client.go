// Package client is the API abstraction consumed by dashboards and tooling.
// One contract, two implementations: a network-backed client for a real
// gateway and an in-memory simulation with artificial latency. The choice is
// made once, from configuration, when the client is constructed.
package client

import (
	"context"
	"errors"

	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/models"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

// ErrNetwork wraps transport-level failures from the HTTP client so callers
// can distinguish them from gateway-reported errors.
var ErrNetwork = errors.New("network failure")

// ErrNotFound mirrors the store sentinel; both implementations return it when
// a referenced action id does not exist.
var ErrNotFound = store.ErrNotFound

// Result wraps a mutating call's outcome the way the gateway reports it.
type Result struct {
	ActionID     string                     `json:"action_id"`
	Status       string                     `json:"status,omitempty"`
	Action       *models.Action             `json:"action,omitempty"`
	Execution    *models.ExecutionResult    `json:"execution,omitempty"`
	Verification *models.VerificationResult `json:"verification,omitempty"`
	Rollback     *models.Rollback           `json:"rollback,omitempty"`
	Message      string                     `json:"message,omitempty"`
}

// AuditTrail is the audit-trail endpoint's response shape.
type AuditTrail struct {
	ActionID string        `json:"action_id"`
	Events   []audit.Event `json:"audit_trail"`
}

// Client is the stable operation surface of the ATP gateway.
type Client interface {
	GetHealth(ctx context.Context) (service.Health, error)
	GetActions(ctx context.Context) ([]*models.Action, error)
	DeclareAction(ctx context.Context, req service.DeclareRequest) (*models.Action, error)
	ApproveAction(ctx context.Context, id, approver, reason string) (*Result, error)
	RejectAction(ctx context.Context, id, approver, reason string) (*Result, error)
	ExecuteAction(ctx context.Context, id, webhookURL string) (*Result, error)
	VerifyAction(ctx context.Context, id string) (*Result, error)
	RollbackAction(ctx context.Context, id, reason string) (*Result, error)
	GetAuditTrail(ctx context.Context, id string) (*AuditTrail, error)
	GetExplanation(ctx context.Context, id string) (*service.Explanation, error)
}

// Config selects and parameterizes an implementation.
type Config struct {
	// UseMock selects the in-memory simulation instead of the network client.
	UseMock bool

	// BaseURL of the real gateway, e.g. http://localhost:8080/atp/v1.
	BaseURL string

	// Token is the optional bearer token for the real gateway's write routes.
	Token string
}

// New resolves the implementation once per process lifetime.
func New(cfg Config) (Client, error) {
	if cfg.UseMock {
		return NewMockClient(MockConfig{Seed: true}), nil
	}
	return NewHTTPClient(cfg.BaseURL, cfg.Token)
}
