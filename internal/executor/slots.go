package executor

import (
	"context"
	"sync"
	"time"
)

// slots is the per-user admission gate. An entry is created lazily the first
// time a user submits and kept while idle so a burst of submissions does not
// churn the map; idle entries are reclaimed by pruneIdle.
//
// The registry mutex is held only for map access, never across a request.
type slots struct {
	mu    sync.Mutex
	users map[int64]*slot
}

// slot stores the state of one user. handle and cancel are set only while
// running.
type slot struct {
	running   bool
	handle    *Handle
	cancel    context.CancelFunc
	idleSince time.Time
}

func newSlots() *slots {
	return &slots{users: make(map[int64]*slot)}
}

// acquire locks the slot of userID for h. It reports false when the slot is
// already running.
func (s *slots) acquire(userID int64, h *Handle, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.users[userID]
	if !ok {
		sl = &slot{}
		s.users[userID] = sl
	}
	if sl.running {
		return false
	}
	sl.running = true
	sl.handle = h
	sl.cancel = cancel
	return true
}

// release returns the slot of userID to idle. It is a no-op when h no
// longer owns the slot.
func (s *slots) release(userID int64, h *Handle, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.users[userID]
	if !ok || sl.handle != h {
		return
	}
	sl.running = false
	sl.handle = nil
	sl.cancel = nil
	sl.idleSince = now
}

// cancel signals the running request of userID. It reports whether one was running.
func (s *slots) cancel(userID int64) bool {
	s.mu.Lock()
	sl, ok := s.users[userID]
	if !ok || !sl.running {
		s.mu.Unlock()
		return false
	}
	cancel := sl.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// current returns the running handle of userID, if any.
func (s *slots) current(userID int64) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.users[userID]
	if !ok || !sl.running {
		return nil, false
	}
	return sl.handle, true
}

// pruneIdle removes entries idle since before cutoff and returns how many
// were removed. Running entries are never removed.
func (s *slots) pruneIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sl := range s.users {
		if !sl.running && sl.idleSince.Before(cutoff) {
			delete(s.users, id)
			pruned++
		}
	}
	return pruned
}

// size returns the number of entries.
func (s *slots) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
