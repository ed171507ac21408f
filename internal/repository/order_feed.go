package repository

import (
	"context"
	"errors"

	"perfumery-notify/internal/domain/entity"
)

// ErrPermissionDenied is reported by a feed when the current credentials may
// not read orders. Watchers treat it as an expected condition.
var ErrPermissionDenied = errors.New("order feed: permission denied")

// OrderFeed is a live view of the newest pending order.
type OrderFeed interface {
	// Subscribe starts streaming. The subscription ends when ctx is done or
	// Close is called; its Orders channel is closed then.
	Subscribe(ctx context.Context) (OrderSubscription, error)
}

// OrderSubscription is one active feed connection.
//
// Orders delivers the newest pending order each time it changes, including
// once right after (re)connecting. Errors reports non-fatal problems such as
// a dropped connection being retried; it is never closed and may be ignored.
type OrderSubscription interface {
	Orders() <-chan *entity.Order
	Errors() <-chan error
	Close() error
}
