// Package executor runs at most one generation request per user at a time,
// streams its answer to the user and bills it exactly once.
package executor

import "errors"

// Sentinel errors for executor operations.
var (
	// ErrBusy indicates the user already has a running request. The caller
	// may cancel it and submit again.
	ErrBusy = errors.New("executor: previous request still running")

	// ErrInsufficientBalance indicates the user's balance does not exceed
	// the configured minimum.
	ErrInsufficientBalance = errors.New("executor: insufficient balance")

	// ErrEmptyInput indicates a submission with no text and no image.
	ErrEmptyInput = errors.New("executor: empty input")

	// ErrUnknownModel indicates the requested model has no price.
	ErrUnknownModel = errors.New("executor: unknown model")

	// ErrUnknownChatMode indicates a chat mode outside the configured set.
	ErrUnknownChatMode = errors.New("executor: unknown chat mode")

	// ErrNothingToRetry indicates Retry found no turn to replay.
	ErrNothingToRetry = errors.New("executor: nothing to retry")

	// ErrCancelledByUser is the Outcome error of a cancelled request.
	// It is a normal terminal state, not a failure.
	ErrCancelledByUser = errors.New("executor: cancelled by user")

	// ErrStopped indicates the controller no longer accepts work.
	ErrStopped = errors.New("executor: stopped")

	// ErrNoStore, ErrNoBackend, ErrNoTransport and ErrNoLedger report a
	// missing collaborator in Config.
	ErrNoStore     = errors.New("executor: no store configured")
	ErrNoBackend   = errors.New("executor: no generation backend configured")
	ErrNoTransport = errors.New("executor: no transport configured")
	ErrNoLedger    = errors.New("executor: no ledger configured")

	errPanic = errors.New("executor: request panicked")
)
