package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atplabs/atp-gateway/internal/models"
)

// PGStore persists actions in Postgres. The action document is stored as a
// JSONB column alongside a few indexed scalar columns; attaches run inside a
// transaction with a row lock so concurrent transitions on the same action
// serialize instead of interleaving.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Schema is the DDL the store expects. Kept here so deployments and tests
// share one definition.
const Schema = `
CREATE TABLE IF NOT EXISTS atp_actions (
    action_id   TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    status      TEXT NOT NULL,
    declared_at TIMESTAMPTZ NOT NULL,
    doc         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS atp_actions_declared_at_idx ON atp_actions (declared_at DESC);
`

func scanAction(row interface{ Scan(...interface{}) error }) (*models.Action, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var a models.Action
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("unmarshal action doc: %w", err)
	}
	return &a, nil
}

func (s *PGStore) PutAction(ctx context.Context, a *models.Action) (*models.Action, error) {
	cp := a.Clone()
	if cp.ActionID == "" {
		cp.ActionID = models.NewActionID()
	}
	cp.SyncStatus()
	doc, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal action doc: %w", err)
	}
	const query = `
		INSERT INTO atp_actions (action_id, workflow_id, action_type, status, declared_at, doc)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (action_id) DO UPDATE SET status=EXCLUDED.status, doc=EXCLUDED.doc
	`
	if _, err := s.db.ExecContext(ctx, query, cp.ActionID, cp.WorkflowID, cp.ActionType, cp.Status, cp.Timestamp, doc); err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	return cp, nil
}

func (s *PGStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	const query = `SELECT doc FROM atp_actions WHERE action_id=$1`
	a, err := scanAction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

func (s *PGStore) ListActions(ctx context.Context) ([]*models.Action, error) {
	const query = `SELECT doc FROM atp_actions ORDER BY declared_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

func (s *PGStore) AttachApproval(ctx context.Context, id string, d models.ApprovalDecision) (*models.Action, error) {
	return s.update(ctx, id, func(a *models.Action) error {
		d.ActionID = id
		a.ApprovalDecision = &d
		return nil
	})
}

func (s *PGStore) AttachExecution(ctx context.Context, id string, r models.ExecutionResult) (*models.Action, error) {
	return s.update(ctx, id, func(a *models.Action) error {
		if a.ApprovalDecision != nil && a.ApprovalDecision.Decision == models.DecisionRejected {
			return ErrRejected
		}
		r.ActionID = id
		a.ExecutionResult = &r
		return nil
	})
}

func (s *PGStore) AttachVerification(ctx context.Context, id string, v models.VerificationResult) (*models.Action, error) {
	return s.update(ctx, id, func(a *models.Action) error {
		v.ActionID = id
		a.VerificationResult = &v
		return nil
	})
}

func (s *PGStore) AttachRollback(ctx context.Context, id string, rb models.Rollback) (*models.Action, error) {
	return s.update(ctx, id, func(a *models.Action) error {
		rb.ActionID = id
		a.Rollback = &rb
		return nil
	})
}

func (s *PGStore) update(ctx context.Context, id string, fn func(*models.Action) error) (*models.Action, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const selectQuery = `SELECT doc FROM atp_actions WHERE action_id=$1 FOR UPDATE`
	a, err := scanAction(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock action: %w", err)
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.SyncStatus()
	doc, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal action doc: %w", err)
	}
	const updateQuery = `UPDATE atp_actions SET status=$2, doc=$3 WHERE action_id=$1`
	if _, err := tx.ExecContext(ctx, updateQuery, id, a.Status, doc); err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return a, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
