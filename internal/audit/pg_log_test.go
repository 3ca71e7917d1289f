package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestPGLogAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := NewPGLog(db)
	mock.ExpectExec("INSERT INTO atp_audit_events").
		WithArgs(sqlmock.AnyArg(), "act_1", EventDeclared, "user_1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev := &Event{ActionID: "act_1", Event: EventDeclared, Actor: "user_1"}
	if err := l.Append(context.Background(), ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.ID == "" {
		t.Fatalf("id not assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGLogTrail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := NewPGLog(db)
	details, _ := json.Marshal(map[string]interface{}{"workflow_id": "wf_test_v1"})
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "action_id", "event", "actor", "details", "ts"}).
		AddRow("ev_1", "act_1", EventDeclared, "user_1", details, now).
		AddRow("ev_2", "act_1", EventRiskAssessed, "risk_engine", nil, now.Add(time.Second))
	mock.ExpectQuery("SELECT id, action_id, event, actor, details, ts").
		WithArgs("act_1").
		WillReturnRows(rows)

	trail, err := l.Trail(context.Background(), "act_1")
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 events, got %d", len(trail))
	}
	if trail[0].Event != EventDeclared || trail[1].Event != EventRiskAssessed {
		t.Fatalf("unexpected order: %s, %s", trail[0].Event, trail[1].Event)
	}
	if trail[0].Details["workflow_id"] != "wf_test_v1" {
		t.Fatalf("details not decoded: %v", trail[0].Details)
	}
}

func TestPGLogTrailEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := NewPGLog(db)
	mock.ExpectQuery("SELECT id, action_id, event, actor, details, ts").
		WithArgs("act_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action_id", "event", "actor", "details", "ts"}))

	if _, err := l.Trail(context.Background(), "act_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGLogFetchPendingClaims(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := NewPGLog(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "action_id", "event", "actor", "details", "ts"}).
		AddRow("ev_1", "act_1", EventDeclared, "user_1", nil, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, action_id, event, actor, details, ts").
		WithArgs(10).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE atp_audit_events").
		WithArgs("ev_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	events, err := l.FetchPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev_1" {
		t.Fatalf("unexpected events: %v", events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGLogMarkStreamResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := NewPGLog(db)
	mock.ExpectExec("UPDATE atp_audit_events SET stream_status").
		WithArgs("ev_1", StreamDone).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE atp_audit_events SET stream_status").
		WithArgs("ev_2", StreamPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := l.MarkStreamResult(context.Background(), "ev_1", true); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := l.MarkStreamResult(context.Background(), "ev_2", false); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
