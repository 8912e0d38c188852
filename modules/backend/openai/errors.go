package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/generation"
)

// errAuth is a non-retryable authentication error.
var errAuth = errors.New("openai: authentication failed")

// mapHTTPError maps an HTTP status code and response body to a generation
// sentinel error. Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var msg string
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	} else {
		msg = string(body)
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: %s", generation.ErrRateLimit, msg)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %w: %s", generation.ErrUpstream, errAuth, msg)
	case statusCode == 400 && (apiErr.Error.Code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(msg), "context_length")):
		return fmt.Errorf("%w: %s", ctxengine.ErrContextOverflow, msg)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", generation.ErrUpstream, statusCode, msg)
	}
}

// mapConnectionError maps network-level errors to ErrUpstream. Context
// errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", generation.ErrUpstream, err)
}
