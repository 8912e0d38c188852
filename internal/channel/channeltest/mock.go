// Package channeltest provides test helpers for the channel package.
package channeltest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flemzord/meterbot/internal/channel"
)

// Op is one recorded transport call.
type Op struct {
	Kind   string // "send", "edit" or "typing"
	Handle channel.Handle
	Text   string
	Mode   channel.ParseMode
}

// MockTransport is a test double for channel.Transport that records every
// call. SendFunc and EditFunc, when set, decide the returned error; the call
// is recorded either way. All methods are safe for concurrent use.
type MockTransport struct {
	SendFunc func(ctx context.Context, userID int64, text string, mode channel.ParseMode) error
	EditFunc func(ctx context.Context, h channel.Handle, text string, mode channel.ParseMode) error

	nextID atomic.Int64

	mu  sync.Mutex
	ops []Op
}

// Interface guards.
var (
	_ channel.Transport = (*MockTransport)(nil)
	_ channel.Typer     = (*MockTransport)(nil)
)

// Send records the message and returns a fresh handle.
func (m *MockTransport) Send(ctx context.Context, userID int64, text string, mode channel.ParseMode) (channel.Handle, error) {
	h := channel.Handle{UserID: userID, ChatID: userID, MessageID: m.nextID.Add(1)}
	m.record(Op{Kind: "send", Handle: h, Text: text, Mode: mode})
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, userID, text, mode); err != nil {
			return channel.Handle{}, err
		}
	}
	return h, nil
}

// Edit records the edit.
func (m *MockTransport) Edit(ctx context.Context, h channel.Handle, text string, mode channel.ParseMode) error {
	m.record(Op{Kind: "edit", Handle: h, Text: text, Mode: mode})
	if m.EditFunc != nil {
		return m.EditFunc(ctx, h, text, mode)
	}
	return nil
}

// SendTyping records a typing indicator.
func (m *MockTransport) SendTyping(_ context.Context, userID int64) error {
	m.record(Op{Kind: "typing", Handle: channel.Handle{UserID: userID, ChatID: userID}})
	return nil
}

func (m *MockTransport) record(op Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

// Ops returns a copy of every recorded call in order.
func (m *MockTransport) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// Sent returns the texts of recorded Send calls.
func (m *MockTransport) Sent() []string {
	return m.texts("send")
}

// Edits returns the texts of recorded Edit calls.
func (m *MockTransport) Edits() []string {
	return m.texts("edit")
}

// SentContaining reports whether any sent message contains substr.
func (m *MockTransport) SentContaining(substr string) bool {
	for _, s := range m.Sent() {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func (m *MockTransport) texts(kind string) []string {
	var out []string
	for _, op := range m.Ops() {
		if op.Kind == kind {
			out = append(out, op.Text)
		}
	}
	return out
}
