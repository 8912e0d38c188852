// Package generationtest provides test helpers for the generation package.
package generationtest

import (
	"context"
	"sync"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/pkg/chat"
)

// MockBackend is a configurable test double for generation.Backend.
// GenerateFunc must be set. TokenizerFunc defaults to LenTokenizer and
// ContextWindowFunc to 4096. All methods are safe for concurrent use.
type MockBackend struct {
	GenerateFunc      func(ctx context.Context, req generation.Request) (<-chan generation.Snapshot, error)
	TokenizerFunc     func(model string) ctxengine.Tokenizer
	ContextWindowFunc func(model string) int

	mu       sync.Mutex
	Requests []generation.Request
}

// Generate records req and delegates to GenerateFunc.
func (m *MockBackend) Generate(ctx context.Context, req generation.Request) (<-chan generation.Snapshot, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

// Tokenizer delegates to TokenizerFunc.
func (m *MockBackend) Tokenizer(model string) ctxengine.Tokenizer {
	if m.TokenizerFunc == nil {
		return LenTokenizer{}
	}
	return m.TokenizerFunc(model)
}

// ContextWindow delegates to ContextWindowFunc.
func (m *MockBackend) ContextWindow(model string) int {
	if m.ContextWindowFunc == nil {
		return 4096
	}
	return m.ContextWindowFunc(model)
}

// Calls returns a copy of the recorded requests.
func (m *MockBackend) Calls() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// Script returns a GenerateFunc that streams snaps in order and closes.
func Script(snaps ...generation.Snapshot) func(context.Context, generation.Request) (<-chan generation.Snapshot, error) {
	return func(ctx context.Context, _ generation.Request) (<-chan generation.Snapshot, error) {
		ch := make(chan generation.Snapshot)
		go func() {
			defer close(ch)
			for _, s := range snaps {
				if !generation.Send(ctx, ch, s) {
					return
				}
			}
		}()
		return ch, nil
	}
}

// ScriptThenBlock streams snaps, signals reached, then holds the stream open
// until ctx is cancelled.
func ScriptThenBlock(reached chan<- struct{}, snaps ...generation.Snapshot) func(context.Context, generation.Request) (<-chan generation.Snapshot, error) {
	return func(ctx context.Context, _ generation.Request) (<-chan generation.Snapshot, error) {
		ch := make(chan generation.Snapshot)
		go func() {
			defer close(ch)
			for _, s := range snaps {
				if !generation.Send(ctx, ch, s) {
					return
				}
			}
			close(reached)
			<-ctx.Done()
		}()
		return ch, nil
	}
}

// LenTokenizer sizes text by byte length with no overhead.
type LenTokenizer struct{}

// TurnTokens implements ctxengine.Tokenizer.
func (LenTokenizer) TurnTokens(t chat.Turn) int { return len(t.User.Text) + len(t.Bot) }

// InputTokens implements ctxengine.Tokenizer.
func (LenTokenizer) InputTokens(c chat.Content) int { return len(c.Text) }

// Interface guards.
var (
	_ generation.Backend  = (*MockBackend)(nil)
	_ ctxengine.Tokenizer = LenTokenizer{}
)
