package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/observability/metrics"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/usecase/compose"
	"perfumery-notify/internal/usecase/notify"
)

// PlaceInput is a storefront checkout. Prices come from the cart; totals
// are computed here.
type PlaceInput struct {
	Items          []entity.LineItem
	Customer       entity.Customer
	Shipping       entity.ShippingAddress
	Discount       float64
	ShippingCost   float64
	Tax            float64
	PaymentMethod  string
	PointsRedeemed int
	Notes          string
}

// Notifier is the part of the notification service the order flows use.
type Notifier interface {
	SendWithGuarantee(ctx context.Context, order *entity.Order, opts notify.Options) notify.Result
	NotifyStatusChange(ctx context.Context, order *entity.Order, tr compose.Transition) (bool, error)
	Go(ctx context.Context, kind string, fn func(ctx context.Context) (bool, error)) error
}

// Service provides order use cases. New-order notifications are not sent
// from Place: the order feed picks the insert up and the worker delivers it.
type Service struct {
	Repo     repository.OrderRepository
	Notifier Notifier
	Now      func() time.Time
}

// Place validates a checkout, allocates an order number and stores the
// order as pending.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*entity.Order, error) {
	now := s.now()
	o := &entity.Order{
		ID:             uuid.NewString(),
		Status:         entity.OrderStatusPending,
		Items:          in.Items,
		Customer:       trimCustomer(in.Customer),
		Shipping:       in.Shipping,
		Discount:       in.Discount,
		ShippingCost:   in.ShippingCost,
		Tax:            in.Tax,
		PaymentMethod:  in.PaymentMethod,
		PointsRedeemed: in.PointsRedeemed,
		Notes:          strings.TrimSpace(in.Notes),
		StatusHistory:  []entity.StatusChange{{Status: entity.OrderStatusPending, Timestamp: now}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	for _, amount := range []struct {
		field string
		value float64
	}{{"discount", in.Discount}, {"shippingCost", in.ShippingCost}, {"tax", in.Tax}} {
		if amount.value < 0 {
			return nil, &entity.ValidationError{Field: amount.field, Message: "must not be negative"}
		}
	}

	for _, li := range o.Items {
		o.Subtotal += li.LineTotal()
	}
	o.Subtotal = roundCents(o.Subtotal)
	o.Total = roundCents(o.ExpectedTotal())
	if o.Total < 0 {
		return nil, &entity.ValidationError{Field: "discount", Message: "must not exceed the order amount"}
	}

	number, err := s.Repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}
	o.OrderNumber = number

	if err := s.Repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordOrderPlaced(o.Total)
	return o, nil
}

// Get returns an order or ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, id string) (*entity.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &entity.ValidationError{Field: "id", Message: "is required"}
	}
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// UpdateStatus moves an order to a new status and schedules the short
// status-change notification. The returned order carries the new status.
func (s *Service) UpdateStatus(ctx context.Context, id string, to entity.OrderStatus, note string) (*entity.Order, error) {
	if !to.Valid() {
		return nil, &entity.ValidationError{Field: "status", Message: fmt.Sprintf("must be one of %v", entity.OrderStatuses)}
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return nil, &entity.ValidationError{Field: "status", Message: "must not be the current status"}
	}

	change := entity.StatusChange{Status: to, Timestamp: s.now(), Note: strings.TrimSpace(note)}
	if err := s.Repo.UpdateStatus(ctx, id, change); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	metrics.RecordStatusChange(string(to))

	tr := compose.Transition{From: o.Status, To: to}
	o.Status = to
	o.UpdatedAt = change.Timestamp
	o.StatusHistory = append(o.StatusHistory, change)

	if s.Notifier != nil {
		snapshot := *o
		err := s.Notifier.Go(ctx, "status_change", func(ctx context.Context) (bool, error) {
			return s.Notifier.NotifyStatusChange(ctx, &snapshot, tr)
		})
		if err != nil {
			slog.Warn("Status change notification not scheduled",
				slog.String("order_id", o.ID),
				slog.Any("error", err))
		}
	}
	return o, nil
}

// Notify sends the full new-order message with the guaranteed-send policy
// and waits for the outcome. maxRetries of zero uses the default.
func (s *Service) Notify(ctx context.Context, id string, maxRetries int) (notify.Result, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return notify.Result{}, err
	}
	return s.Notifier.SendWithGuarantee(ctx, o, notify.Options{MaxRetries: maxRetries}), nil
}

// NotifyStatus sends the status-change message for an arbitrary transition
// without touching the stored order.
func (s *Service) NotifyStatus(ctx context.Context, id string, tr compose.Transition) (bool, error) {
	if !tr.From.Valid() {
		return false, &entity.ValidationError{Field: "from", Message: "must be a known status"}
	}
	if !tr.To.Valid() {
		return false, &entity.ValidationError{Field: "to", Message: "must be a known status"}
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.Notifier.NotifyStatusChange(ctx, o, tr)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func trimCustomer(c entity.Customer) entity.Customer {
	return entity.Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.TrimSpace(c.Email),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
