package generation

import "errors"

// Sentinel errors for generation backends.
var (
	// ErrUpstream indicates the backend failed to produce an answer.
	// Usage reported before the failure is still billed.
	ErrUpstream = errors.New("generation: upstream error")

	// ErrRateLimit indicates the backend throttled the request.
	ErrRateLimit = errors.New("generation: rate limited")
)

// IsRetryable reports whether the error is transient and the request can be
// resubmitted by the user later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit)
}
