// Package sessions implements the versioned, lock-protected SessionState
// store and session-lock primitives the executor depends on (spec §4.4,
// §5).
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// ErrNotFound is returned by Load when no state has ever been saved for a
// session id.
var ErrNotFound = errors.New("sessions: state not found")

// ErrVersionConflict is returned by Save when a store implementation enforces
// optimistic concurrency and the caller's base version is stale. The core
// does not rely on this for correctness (the session lock already
// serializes writers) but a store MAY surface it (spec §4.4).
var ErrVersionConflict = errors.New("sessions: version conflict")

// Store is the state persistence port (spec §4.4): load/save/list/delete/
// cleanup over models.SessionState, keyed by session id.
type Store interface {
	// Load returns the current state for sessionID, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*models.SessionState, error)

	// Save atomically persists state and returns the state as actually
	// written, with Version bumped to the previous version + 1.
	Save(ctx context.Context, state *models.SessionState) (*models.SessionState, error)

	// List returns every known session id.
	List(ctx context.Context) ([]string, error)

	// Delete removes a session's state entirely.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup deletes sessions whose state was last updated before
	// olderThan, returning the count removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

// Locker provides the per-session mutual exclusion the executor relies on
// to serialize execute/answer calls against one session (spec §5).
type Locker interface {
	Lock(ctx context.Context, sessionID string) error
	Unlock(sessionID string)
}
