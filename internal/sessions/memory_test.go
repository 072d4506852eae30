package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestMemoryStore_SaveIncrementsVersion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := models.NewSessionState("sess-1")
	state.Mission = "investigate outage"

	saved, err := store.Save(ctx, state)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d, want 1", saved.Version)
	}

	saved.Mission = "investigate outage, round 2"
	saved, err = store.Save(ctx, saved)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("version = %d, want 2", saved.Version)
	}
}

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_LoadReturnsIndependentClone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := models.NewSessionState("sess-2")
	state.Answers["q1"] = "a1"
	if _, err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "sess-2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Answers["q1"] = "mutated"

	reloaded, err := store.Load(ctx, "sess-2")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Answers["q1"] != "a1" {
		t.Fatalf("mutation leaked into stored state: %q", reloaded.Answers["q1"])
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Save(ctx, models.NewSessionState("old")); err != nil {
		t.Fatalf("save: %v", err)
	}

	cutoff := time.Now().Add(time.Hour)
	removed, err := store.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Load(ctx, "old"); err != ErrNotFound {
		t.Fatalf("expected session to be gone after cleanup")
	}
}

func TestLocalLocker_SerializesAccess(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	if err := locker.Lock(ctx, "s1"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := locker.Lock(ctx, "s1"); err != nil {
			t.Errorf("second lock: %v", err)
			return
		}
		close(acquired)
		locker.Unlock("s1")
	}()

	select {
	case <-acquired:
		t.Fatalf("second Lock returned before first Unlock")
	case <-time.After(50 * time.Millisecond):
	}

	locker.Unlock("s1")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second Lock never acquired after Unlock")
	}
}

func TestLocalLocker_ContextCancelledWhileWaiting(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	if err := locker.Lock(ctx, "s2"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer locker.Unlock("s2")

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := locker.Lock(cancelCtx, "s2"); err == nil {
		t.Fatalf("expected context deadline error")
	}
}
