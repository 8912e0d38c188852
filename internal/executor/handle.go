package executor

import (
	"context"

	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Status is the state of a user's slot.
type Status string

// Slot states.
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
)

// CancelResult reports what Cancel did.
type CancelResult string

// Cancel results.
const (
	Cancelled       CancelResult = "cancelled"
	NothingToCancel CancelResult = "nothing_to_cancel"
)

// OutcomeKind is the terminal state of a request.
type OutcomeKind string

// Terminal states.
const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome describes how a request ended and what it cost.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// Err is ErrCancelledByUser for cancelled requests and the cause for
	// failed ones.
	Err   error            `json:"-"`
	Usage generation.Usage `json:"usage"`
	Cost  chat.Money       `json:"cost"`
	// ChargeErr is set when billing itself failed.
	ChargeErr error  `json:"-"`
	Text      string `json:"text,omitempty"`
	Dropped   int    `json:"dropped"`
}

// Handle tracks one accepted request.
type Handle struct {
	RequestID string
	UserID    int64

	done    chan struct{}
	outcome Outcome
}

func newHandle(requestID string, userID int64) *Handle {
	return &Handle{RequestID: requestID, UserID: userID, done: make(chan struct{})}
}

// Done is closed once the request reached a terminal state, was billed and
// released its slot.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome, or false while still running.
func (h *Handle) Outcome() (Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the request ends or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(out Outcome) {
	h.outcome = out
	close(h.done)
}

// Message returns the text shown to the user for r.
func (r CancelResult) Message() string {
	if r == Cancelled {
		return msgCancelled
	}
	return msgNothing
}
