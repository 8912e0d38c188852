// Package generation defines the contract between the execution controller
// and text generation backends.
package generation

import (
	"context"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Status is the lifecycle state carried by a Snapshot.
type Status int

// Snapshot states.
const (
	InProgress Status = iota
	Finished
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == Finished {
		return "finished"
	}
	return "in_progress"
}

// Usage is the cumulative token usage of one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// IsZero reports whether no tokens were reported.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}

// Snapshot is one observation of a growing answer. Text and Usage are
// cumulative: each snapshot supersedes the previous one.
type Snapshot struct {
	Status Status
	Text   string
	Usage  Usage
	// Dropped counts history turns the backend removed on its own.
	Dropped int
	// Err terminates the stream with a failure.
	Err error
}

// Request is the input of one generation.
type Request struct {
	RequestID string
	UserID    int64
	Model     string
	ChatMode  string
	History   []chat.Turn
	Input     chat.Content
}

// Backend produces answers as a stream of snapshots. Non-streaming backends
// return a channel carrying exactly one Finished snapshot (see Single).
//
// The returned channel must be closed by the producer, and the producer must
// stop sending once ctx is cancelled.
type Backend interface {
	Generate(ctx context.Context, req Request) (<-chan Snapshot, error)
	// Tokenizer sizes dialog material for model.
	Tokenizer(model string) ctxengine.Tokenizer
	// ContextWindow returns the token capacity of model.
	ContextWindow(model string) int
}

// Single wraps a complete answer in a closed channel holding one Finished
// snapshot.
func Single(s Snapshot) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.Status = Finished
	ch <- s
	close(ch)
	return ch
}

// Send delivers s on ch unless ctx is cancelled first. It reports whether
// the snapshot was delivered.
func Send(ctx context.Context, ch chan<- Snapshot, s Snapshot) bool {
	select {
	case ch <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
