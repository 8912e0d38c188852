package ledger

import "sync"

// userLock serializes work per user while letting different users proceed
// in parallel. The map mutex is only held to find or create the per-user
// mutex; entries are dropped once no goroutine holds or waits on them.
type userLock struct {
	mu    sync.Mutex
	users map[int64]*userEntry
}

type userEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLock() *userLock {
	return &userLock{users: make(map[int64]*userEntry)}
}

// lock acquires the mutex of userID. The returned func releases it.
func (l *userLock) lock(userID int64) func() {
	l.mu.Lock()
	e, ok := l.users[userID]
	if !ok {
		e = &userEntry{}
		l.users[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	// Lock outside the map mutex so other users are not blocked.
	e.mu.Lock()

	return func() {
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
		e.mu.Unlock()
	}
}

// size returns the number of live entries.
func (l *userLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
