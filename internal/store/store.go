// Package store persists Actions and the sub-records attached to them over
// their lifecycle. Two implementations exist: a mutex-guarded in-memory store
// used by tests and the simulated backend, and a Postgres store for real
// deployments. Both are constructor-injected; there is no package singleton.
package store

import (
	"context"
	"errors"

	"github.com/atplabs/atp-gateway/internal/models"
)

// ErrNotFound is returned when a referenced action id is absent.
var ErrNotFound = errors.New("action not found")

// ErrRejected is returned when an execution result would be attached to an
// action whose approval decision is rejected. Rejection is terminal.
var ErrRejected = errors.New("action rejected")

// Store is the persistence abstraction for Actions. Every Attach operation
// re-derives the action status, applies atomically, and fails with
// ErrNotFound for unknown ids without mutating anything.
type Store interface {
	PutAction(ctx context.Context, a *models.Action) (*models.Action, error)
	GetAction(ctx context.Context, id string) (*models.Action, error)
	// ListActions returns all actions newest-first by declaration time.
	ListActions(ctx context.Context) ([]*models.Action, error)
	AttachApproval(ctx context.Context, id string, d models.ApprovalDecision) (*models.Action, error)
	AttachExecution(ctx context.Context, id string, r models.ExecutionResult) (*models.Action, error)
	AttachVerification(ctx context.Context, id string, v models.VerificationResult) (*models.Action, error)
	AttachRollback(ctx context.Context, id string, rb models.Rollback) (*models.Action, error)
	Ping(ctx context.Context) error
}
