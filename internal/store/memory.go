package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/meterbot/pkg/chat"
)

// Memory is a concurrency-safe, in-memory Store and UsageLog. The now
// function is injectable for deterministic testing.
type Memory struct {
	mu      sync.RWMutex
	users   map[int64]*chat.User
	dialogs map[string]*chat.Dialog
	order   []string // dialog IDs in creation order
	usage   []UsageRecord

	now func() time.Time
}

// Interface guards.
var (
	_ Store    = (*Memory)(nil)
	_ UsageLog = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]*chat.User),
		dialogs: make(map[string]*chat.Dialog),
		now:     time.Now,
	}
}

// EnsureUser implements Store.
func (m *Memory) EnsureUser(_ context.Context, tmpl chat.User) (chat.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[tmpl.ID]; ok {
		return u.Clone(), nil
	}

	u := tmpl.Clone()
	if u.FirstSeen.IsZero() {
		u.FirstSeen = m.now()
	}
	m.users[u.ID] = &u
	m.startDialogLocked(&u)
	return u.Clone(), nil
}

// GetUser implements Store.
func (m *Memory) GetUser(_ context.Context, userID int64) (chat.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return chat.User{}, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return u.Clone(), nil
}

// SetUserField implements Store.
func (m *Memory) SetUserField(_ context.Context, userID int64, field chat.Field, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return u.Set(field, value)
}

// CurrentDialog implements Store.
func (m *Memory) CurrentDialog(_ context.Context, userID int64) (chat.Dialog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, err := m.currentLocked(userID)
	if err != nil {
		return chat.Dialog{}, err
	}
	return cloneDialog(d), nil
}

// StartNewDialog implements Store.
func (m *Memory) StartNewDialog(_ context.Context, userID int64) (chat.Dialog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return chat.Dialog{}, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return cloneDialog(m.startDialogLocked(u)), nil
}

// AppendTurn implements Store.
func (m *Memory) AppendTurn(_ context.Context, userID int64, turn chat.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.currentLocked(userID)
	if err != nil {
		return err
	}
	d.Turns = append(d.Turns, turn)
	return nil
}

// PopTurn implements Store.
func (m *Memory) PopTurn(_ context.Context, userID int64) (chat.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.currentLocked(userID)
	if err != nil {
		return chat.Turn{}, err
	}
	if len(d.Turns) == 0 {
		return chat.Turn{}, ErrEmptyDialog
	}
	last := d.Turns[len(d.Turns)-1]
	d.Turns = d.Turns[:len(d.Turns)-1]
	return last, nil
}

// RecordUsage implements UsageLog.
func (m *Memory) RecordUsage(_ context.Context, rec UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, rec)
	return nil
}

// RecentUsage implements UsageLog.
func (m *Memory) RecentUsage(_ context.Context, userID int64, limit int) ([]UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []UsageRecord
	for i := len(m.usage) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.usage[i].UserID == userID {
			out = append(out, m.usage[i])
		}
	}
	return out, nil
}

// Dialogs returns every dialog of userID in creation order.
func (m *Memory) Dialogs(userID int64) []chat.Dialog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []chat.Dialog
	for _, id := range m.order {
		if d := m.dialogs[id]; d.UserID == userID {
			out = append(out, cloneDialog(d))
		}
	}
	return out
}

func (m *Memory) currentLocked(userID int64) (*chat.Dialog, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	d, ok := m.dialogs[u.CurrentDialogID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrDialogNotFound, userID)
	}
	return d, nil
}

func (m *Memory) startDialogLocked(u *chat.User) *chat.Dialog {
	d := &chat.Dialog{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		ChatMode:  u.ChatMode,
		Model:     u.CurrentModel,
		StartedAt: m.now(),
	}
	m.dialogs[d.ID] = d
	m.order = append(m.order, d.ID)
	u.CurrentDialogID = d.ID
	return d
}

func cloneDialog(d *chat.Dialog) chat.Dialog {
	out := *d
	out.Turns = slices.Clone(d.Turns)
	return out
}
