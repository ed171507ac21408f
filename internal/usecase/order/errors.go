// Package order provides the order use cases exposed to operators and the
// storefront: placing an order, moving it through its lifecycle, and
// triggering its Telegram notifications on demand.
package order

import "errors"

// Sentinel errors for order use case operations.
var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")
)
