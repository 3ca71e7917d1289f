package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryLog keeps the audit trail in memory. Used by tests and by the
// gateway when no database is configured.
type MemoryLog struct {
	mu     sync.RWMutex
	trails map[string][]Event
	// stream bookkeeping, append order
	pending []*Event
	states  map[string]string
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		trails: map[string][]Event{},
		states: map[string]string{},
	}
}

func (l *MemoryLog) Append(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.Ts.IsZero() {
		ev.Ts = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trails[ev.ActionID] = append(l.trails[ev.ActionID], *ev)
	cp := *ev
	l.pending = append(l.pending, &cp)
	l.states[ev.ID] = StreamPending
	return nil
}

func (l *MemoryLog) Trail(ctx context.Context, actionID string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	trail, ok := l.trails[actionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Event, len(trail))
	copy(out, trail)
	return out, nil
}

func (l *MemoryLog) Ping(ctx context.Context) error { return nil }

func (l *MemoryLog) FetchPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var claimed []*Event
	for _, ev := range l.pending {
		if len(claimed) >= limit {
			break
		}
		if l.states[ev.ID] != StreamPending {
			continue
		}
		l.states[ev.ID] = StreamInProgress
		cp := *ev
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (l *MemoryLog) MarkStreamResult(ctx context.Context, id string, ok bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		l.states[id] = StreamDone
	} else {
		// back to pending so the next poll retries it
		l.states[id] = StreamPending
	}
	return nil
}
