package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"perfumery-notify/internal/common/pagination"
	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/observability/metrics"
	"perfumery-notify/internal/repository"
)

// SubmitInput represents a contact form submission.
type SubmitInput struct {
	Name    string
	Phone   string
	Email   string
	Subject string
	Message string
}

// Notifier is the part of the notification service the contact flow uses.
type Notifier interface {
	NotifyContactMessage(ctx context.Context, msg *entity.ContactMessage) (bool, error)
	Go(ctx context.Context, kind string, fn func(ctx context.Context) (bool, error)) error
}

// Service handles contact form submissions.
type Service struct {
	Repo     repository.ContactMessageRepository
	Notifier Notifier
	Now      func() time.Time
}

// Submit validates and stores a message, then schedules its notification.
// A notification that cannot be scheduled is logged; the stored message is
// still returned.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*entity.ContactMessage, error) {
	msg := &entity.ContactMessage{
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.TrimSpace(in.Email),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: s.now(),
	}
	if err := msg.Validate(); err != nil {
		metrics.RecordContactMessage(metrics.ContactRejected)
		return nil, err
	}

	if err := s.Repo.Create(ctx, msg); err != nil {
		metrics.RecordContactMessage(metrics.ContactError)
		return nil, fmt.Errorf("create contact message: %w", err)
	}
	metrics.RecordContactMessage(metrics.ContactAccepted)

	if s.Notifier != nil {
		err := s.Notifier.Go(ctx, "contact_message", func(ctx context.Context) (bool, error) {
			return s.Notifier.NotifyContactMessage(ctx, msg)
		})
		if err != nil {
			slog.Warn("Contact message notification not scheduled",
				slog.Int64("contact_id", msg.ID),
				slog.Any("error", err))
		}
	}
	return msg, nil
}

// Get returns a stored message.
func (s *Service) Get(ctx context.Context, id int64) (*entity.ContactMessage, error) {
	msg, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get contact message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// MarkRead flags a message as read by an operator.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	return nil
}

// List returns one page of the inbox, newest first, and the number of
// messages matching filter.
func (s *Service) List(ctx context.Context, params pagination.Params, filter repository.ContactMessageFilter) ([]*entity.ContactMessage, int64, error) {
	total, err := s.Repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}
	if total == 0 || int64(params.Offset()) >= total {
		return nil, total, nil
	}
	msgs, err := s.Repo.List(ctx, filter, params.Offset(), params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	return msgs, total, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
