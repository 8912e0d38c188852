package executor

import (
	"testing"
	"time"
)

func TestSlots_AcquireRelease(t *testing.T) {
	t.Parallel()

	s := newSlots()
	h1 := newHandle("r1", 1)
	h2 := newHandle("r2", 1)

	if !s.acquire(1, h1, nil) {
		t.Fatal("first acquire should succeed")
	}
	if s.acquire(1, h2, nil) {
		t.Fatal("second acquire for the same user should fail")
	}
	if !s.acquire(2, newHandle("r3", 2), nil) {
		t.Fatal("acquire for another user should succeed")
	}

	// A stale handle must not release the slot.
	s.release(1, h2, time.Now())
	if _, ok := s.current(1); !ok {
		t.Fatal("slot released by a handle that does not own it")
	}

	s.release(1, h1, time.Now())
	if _, ok := s.current(1); ok {
		t.Fatal("slot still running after release")
	}
	if !s.acquire(1, h2, nil) {
		t.Fatal("acquire after release should succeed")
	}
}

func TestSlots_Cancel(t *testing.T) {
	t.Parallel()

	s := newSlots()
	if s.cancel(1) {
		t.Fatal("cancel on unknown user should report false")
	}

	called := false
	s.acquire(1, newHandle("r1", 1), func() { called = true })
	if !s.cancel(1) {
		t.Fatal("cancel on running slot should report true")
	}
	if !called {
		t.Error("cancel func not invoked")
	}
}

func TestSlots_PruneIdle(t *testing.T) {
	t.Parallel()

	s := newSlots()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := newHandle("old", 1)
	s.acquire(1, old, nil)
	s.release(1, old, base)

	fresh := newHandle("fresh", 2)
	s.acquire(2, fresh, nil)
	s.release(2, fresh, base.Add(time.Hour))

	s.acquire(3, newHandle("busy", 3), nil)

	if n := s.pruneIdle(base.Add(30 * time.Minute)); n != 1 {
		t.Fatalf("pruneIdle() = %d, want 1", n)
	}
	if s.size() != 2 {
		t.Errorf("size() = %d, want 2", s.size())
	}
	if _, ok := s.current(3); !ok {
		t.Error("running slot must never be pruned")
	}
}
