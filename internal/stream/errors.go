// Package stream drains a generation snapshot stream into throttled,
// idempotent display edits while tracking the latest usage.
package stream

import "errors"

// ErrTransportDegraded indicates the display rejected an edit even after
// falling back to plain text. Display stops; draining and billing continue.
var ErrTransportDegraded = errors.New("stream: transport degraded")
