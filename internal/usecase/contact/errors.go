// Package contact provides the use case behind the storefront contact form:
// a submission is validated, stored and forwarded to the shop's Telegram
// recipients without making the visitor wait for delivery.
package contact

import "errors"

// Sentinel errors for contact use case operations.
var (
	// ErrMessageNotFound indicates that the requested contact message was not found.
	ErrMessageNotFound = errors.New("contact message not found")
)
