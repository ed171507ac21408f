package repository

import (
	"context"

	"perfumery-notify/internal/domain/entity"
)

type OrderRepository interface {
	// Get returns the order with the given id, or nil when it does not exist.
	Get(ctx context.Context, id string) (*entity.Order, error)
	// LatestPending returns the most recently created order in pending status,
	// or nil when there is none.
	LatestPending(ctx context.Context) (*entity.Order, error)
	Create(ctx context.Context, order *entity.Order) error
	UpdateStatus(ctx context.Context, id string, change entity.StatusChange) error
	// NextOrderNumber allocates the next human-facing order number from an
	// atomic server-side counter.
	NextOrderNumber(ctx context.Context) (string, error)
}
