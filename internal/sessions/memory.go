package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// MemoryStore is an in-memory Store, grounded on the teacher's MemoryStore
// sync.RWMutex map pattern. Used for tests and single-process deployments;
// state does not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	state map[string]*models.SessionState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: make(map[string]*models.SessionState)}
}

// Load returns a clone of the stored state, or ErrNotFound.
func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Save persists state, assigning Version = previous version + 1 (spec §4.4
// "every successful save returns a new version equal to the previous +1").
func (m *MemoryStore) Save(ctx context.Context, state *models.SessionState) (*models.SessionState, error) {
	if state == nil {
		return nil, NewErrInvalidState("state is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prevVersion := 0
	if existing, ok := m.state[state.SessionID]; ok {
		prevVersion = existing.Version
	}

	toStore := state.Clone()
	toStore.Version = prevVersion + 1
	toStore.UpdatedAt = time.Now()
	m.state[state.SessionID] = toStore
	return toStore.Clone(), nil
}

// List returns all known session ids.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.state))
	for id := range m.state {
		out = append(out, id)
	}
	return out, nil
}

// Delete removes a session's state.
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, sessionID)
	return nil
}

// Cleanup deletes every session whose state was last updated before
// olderThan.
func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, state := range m.state {
		if state.UpdatedAt.Before(olderThan) {
			delete(m.state, id)
			removed++
		}
	}
	return removed, nil
}

// errInvalidState is a small sentinel-style error for nil-state saves; kept
// unexported since callers should only ever match ErrNotFound/
// ErrVersionConflict per the Store contract.
type errInvalidState struct{ msg string }

func (e *errInvalidState) Error() string { return e.msg }

// NewErrInvalidState constructs the nil-state error returned by Save.
func NewErrInvalidState(msg string) error { return &errInvalidState{msg: msg} }
