package channel

import "errors"

// Sentinel errors for transport operations.
var (
	// ErrNotModified indicates an edit carried the text already displayed.
	// Callers treat it as a successful no-op.
	ErrNotModified = errors.New("channel: message is not modified")

	// ErrMessageNotFound indicates the edited message no longer exists.
	ErrMessageNotFound = errors.New("channel: message not found")
)
