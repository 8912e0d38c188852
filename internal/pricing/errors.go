// Package pricing turns metered actions into euro costs using a static
// price table.
package pricing

import "errors"

// Sentinel errors for cost computation.
var (
	// ErrUnknownModel indicates the table has no price for the requested model.
	ErrUnknownModel = errors.New("pricing: unknown model")

	// ErrUnknownImageOption indicates the quality/resolution pair is not priced
	// for the image model.
	ErrUnknownImageOption = errors.New("pricing: unknown image quality or resolution")

	// ErrNegativeQuantity indicates an action carrying negative usage.
	ErrNegativeQuantity = errors.New("pricing: negative quantity")

	// ErrUnknownAction indicates an Action with an unrecognized Kind.
	ErrUnknownAction = errors.New("pricing: unknown action kind")
)
