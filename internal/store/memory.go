package store

import (
	"context"
	"sort"
	"sync"

	"github.com/atplabs/atp-gateway/internal/models"
)

// MemoryStore keeps actions in a mutex-guarded map. Updates are applied
// atomically per call; reads and writes always work on deep copies so callers
// can never alias internal state.
type MemoryStore struct {
	mu      sync.RWMutex
	actions map[string]*models.Action
	order   []string // action ids in insertion order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{actions: map[string]*models.Action{}}
}

func (m *MemoryStore) PutAction(ctx context.Context, a *models.Action) (*models.Action, error) {
	if a.ActionID == "" {
		a = a.Clone()
		a.ActionID = models.NewActionID()
	}
	cp := a.Clone()
	cp.SyncStatus()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.actions[cp.ActionID]; !exists {
		m.order = append(m.order, cp.ActionID)
	}
	m.actions[cp.ActionID] = cp
	return cp.Clone(), nil
}

func (m *MemoryStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MemoryStore) ListActions(ctx context.Context) ([]*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Action, 0, len(m.actions))
	for _, id := range m.order {
		out = append(out, m.actions[id].Clone())
	}
	// Newest first by declaration time; insertion order breaks ties so a
	// just-declared action always lists first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStore) AttachApproval(ctx context.Context, id string, d models.ApprovalDecision) (*models.Action, error) {
	return m.update(id, func(a *models.Action) error {
		d.ActionID = id
		a.ApprovalDecision = &d
		return nil
	})
}

func (m *MemoryStore) AttachExecution(ctx context.Context, id string, r models.ExecutionResult) (*models.Action, error) {
	return m.update(id, func(a *models.Action) error {
		if a.ApprovalDecision != nil && a.ApprovalDecision.Decision == models.DecisionRejected {
			return ErrRejected
		}
		r.ActionID = id
		a.ExecutionResult = &r
		return nil
	})
}

func (m *MemoryStore) AttachVerification(ctx context.Context, id string, v models.VerificationResult) (*models.Action, error) {
	return m.update(id, func(a *models.Action) error {
		v.ActionID = id
		a.VerificationResult = &v
		return nil
	})
}

func (m *MemoryStore) AttachRollback(ctx context.Context, id string, rb models.Rollback) (*models.Action, error) {
	return m.update(id, func(a *models.Action) error {
		rb.ActionID = id
		a.Rollback = &rb
		return nil
	})
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// update applies fn to a copy of the stored action and swaps it in only if fn
// succeeds, so a failed attach leaves the store untouched.
func (m *MemoryStore) update(id string, fn func(*models.Action) error) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.SyncStatus()
	m.actions[id] = next
	return next.Clone(), nil
}
