// Package ctxengine fits conversation history into a model's context window.
package ctxengine

import "errors"

// ErrContextOverflow indicates the new input alone does not fit the model's
// token budget. No amount of history trimming can fix it.
var ErrContextOverflow = errors.New("ctxengine: context overflow")
