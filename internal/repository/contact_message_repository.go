package repository

import (
	"context"

	"perfumery-notify/internal/domain/entity"
)

type ContactMessageRepository interface {
	Create(ctx context.Context, msg *entity.ContactMessage) error
	Get(ctx context.Context, id int64) (*entity.ContactMessage, error)
	MarkRead(ctx context.Context, id int64) error
	// List returns messages newest first.
	List(ctx context.Context, filter ContactMessageFilter, offset, limit int) ([]*entity.ContactMessage, error)
	Count(ctx context.Context, filter ContactMessageFilter) (int64, error)
}

// ContactMessageFilter narrows inbox listings.
type ContactMessageFilter struct {
	UnreadOnly bool
}
