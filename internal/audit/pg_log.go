package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PGLog is the Postgres-backed audit log. The table doubles as the durable
// outbox for the Kafka streamer: rows carry a stream_status that the streamer
// claims with FOR UPDATE SKIP LOCKED.
type PGLog struct {
	db *sql.DB
}

func NewPGLog(db *sql.DB) *PGLog {
	return &PGLog{db: db}
}

const Schema = `
CREATE TABLE IF NOT EXISTS atp_audit_events (
    id            TEXT PRIMARY KEY,
    action_id     TEXT NOT NULL,
    event         TEXT NOT NULL,
    actor         TEXT NOT NULL,
    details       JSONB,
    ts            TIMESTAMPTZ NOT NULL,
    stream_status TEXT NOT NULL DEFAULT 'pending',
    attempts      INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS atp_audit_events_action_idx ON atp_audit_events (action_id, ts);
CREATE INDEX IF NOT EXISTS atp_audit_events_stream_idx ON atp_audit_events (stream_status, ts);
`

func (l *PGLog) Append(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.Ts.IsZero() {
		ev.Ts = time.Now().UTC()
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	const query = `
		INSERT INTO atp_audit_events (id, action_id, event, actor, details, ts)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	if _, err := l.db.ExecContext(ctx, query, ev.ID, ev.ActionID, ev.Event, ev.Actor, details, ev.Ts); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (l *PGLog) Trail(ctx context.Context, actionID string) ([]Event, error) {
	const query = `
		SELECT id, action_id, event, actor, details, ts
		FROM atp_audit_events
		WHERE action_id=$1
		ORDER BY ts, id
	`
	rows, err := l.db.QueryContext(ctx, query, actionID)
	if err != nil {
		return nil, fmt.Errorf("query trail: %w", err)
	}
	defer rows.Close()

	var trail []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		trail = append(trail, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trail: %w", err)
	}
	if len(trail) == 0 {
		return nil, ErrNotFound
	}
	return trail, nil
}

func scanEvent(row interface{ Scan(...interface{}) error }) (*Event, error) {
	var (
		ev      Event
		details []byte
	)
	if err := row.Scan(&ev.ID, &ev.ActionID, &ev.Event, &ev.Actor, &details, &ev.Ts); err != nil {
		return nil, fmt.Errorf("scan audit event: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &ev.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return &ev, nil
}

// FetchPendingEvents claims up to limit pending events for streaming.
func (l *PGLog) FetchPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const selectQuery = `
		SELECT id, action_id, event, actor, details, ts
		FROM atp_audit_events
		WHERE stream_status='pending'
		ORDER BY ts
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, selectQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	rows.Close()

	for _, ev := range events {
		const claimQuery = `
			UPDATE atp_audit_events
			SET stream_status='in_progress', attempts=attempts+1
			WHERE id=$1
		`
		if _, err := tx.ExecContext(ctx, claimQuery, ev.ID); err != nil {
			return nil, fmt.Errorf("claim event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return events, nil
}

func (l *PGLog) MarkStreamResult(ctx context.Context, id string, ok bool) error {
	status := StreamDone
	if !ok {
		status = StreamPending
	}
	const query = `UPDATE atp_audit_events SET stream_status=$2 WHERE id=$1`
	if _, err := l.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("mark stream result: %w", err)
	}
	return nil
}

func (l *PGLog) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
