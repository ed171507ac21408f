// Package orderwatch notifies operators about new orders as they appear on a
// live order feed, while a privileged session is present.
package orderwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/observability/slo"
	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/service/auth"
)

const (
	// DefaultFreshness is how recent an order must be to be announced.
	DefaultFreshness = 60 * time.Second

	// DefaultDedupeTTL is how long an announced order id is remembered.
	DefaultDedupeTTL = 10 * time.Minute
)

// Notifier announces a new order.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, order *entity.Order) (bool, error)
}

// Deduper claims a key once per TTL. Claim reports true only to the first
// caller.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config tunes the Guard.
type Config struct {
	Freshness time.Duration
	DedupeTTL time.Duration

	// SLO, when set, receives every delivery outcome.
	SLO *slo.Tracker
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{Freshness: DefaultFreshness, DedupeTTL: DefaultDedupeTTL}
}

// Guard watches the order feed and announces each fresh pending order once.
//
// It is inactive until Activate is called with a privileged identity and
// holds at most one feed subscription at a time.
type Guard struct {
	feed     repository.OrderFeed
	notifier Notifier
	deduper  Deduper
	cfg      Config
	now      func() time.Time

	opMu sync.Mutex // serialises Activate and Deactivate

	mu     sync.Mutex
	active *watch
}

type watch struct {
	identity auth.Identity
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewGuard creates a Guard. deduper may be nil.
func NewGuard(feed repository.OrderFeed, notifier Notifier, deduper Deduper, cfg Config) *Guard {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = DefaultDedupeTTL
	}
	return &Guard{
		feed:     feed,
		notifier: notifier,
		deduper:  deduper,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Active reports whether a subscription is currently held.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}

// Activate subscribes on behalf of id. An unprivileged id deactivates the
// guard instead. Activating again for the same session is a no-op; a
// different session replaces the current subscription.
//
// A permission error from the feed leaves the guard inactive and is not
// reported.
func (g *Guard) Activate(ctx context.Context, id auth.Identity) error {
	if !id.Privileged() {
		g.Deactivate()
		return nil
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	current := g.active
	g.mu.Unlock()

	if current != nil {
		if current.identity == id {
			return nil
		}
		g.stop(current)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := g.feed.Subscribe(subCtx)
	if err != nil {
		cancel()
		if errors.Is(err, repository.ErrPermissionDenied) {
			recordFeedError("permission")
			return nil
		}
		recordFeedError("other")
		slog.Error("order feed subscribe failed", slog.Any("error", err))
		return err
	}

	w := &watch{identity: id, cancel: cancel, done: make(chan struct{})}
	g.mu.Lock()
	g.active = w
	g.mu.Unlock()
	watching.Set(1)

	slog.Info("order watcher activated", slog.String("subject", id.Subject))
	go g.loop(subCtx, w, sub)
	return nil
}

// Deactivate releases the subscription, if any, and waits for it to end.
func (g *Guard) Deactivate() {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	current := g.active
	g.mu.Unlock()

	if current != nil {
		g.stop(current)
		slog.Info("order watcher deactivated", slog.String("subject", current.identity.Subject))
	}
}

func (g *Guard) stop(w *watch) {
	w.cancel()
	<-w.done
}

// Run drives the guard from a session stream until ctx is done or sessions
// is closed. The subscription is always released on return.
func (g *Guard) Run(ctx context.Context, sessions <-chan auth.Identity) error {
	defer g.Deactivate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-sessions:
			if !ok {
				return nil
			}
			if err := g.Activate(ctx, id); err != nil {
				slog.Warn("order watcher not activated", slog.Any("error", err))
			}
		}
	}
}

func (g *Guard) loop(ctx context.Context, w *watch, sub repository.OrderSubscription) {
	defer func() {
		if err := sub.Close(); err != nil {
			slog.Debug("order feed close", slog.Any("error", err))
		}
		g.mu.Lock()
		if g.active == w {
			g.active = nil
			watching.Set(0)
		}
		g.mu.Unlock()
		w.cancel()
		close(w.done)
	}()

	orders := sub.Orders()
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-orders:
			if !ok {
				slog.Info("order feed ended")
				return
			}
			g.handle(ctx, order)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, repository.ErrPermissionDenied) {
				recordFeedError("permission")
				continue
			}
			recordFeedError("other")
			slog.Warn("order feed error", slog.Any("error", err))
		}
	}
}

// handle announces order when it is pending, fresh and not yet claimed.
func (g *Guard) handle(ctx context.Context, order *entity.Order) {
	if order == nil {
		return
	}
	if order.Status != entity.OrderStatusPending {
		recordOrder("not_pending")
		return
	}
	if order.CreatedAt.IsZero() || order.Age(g.now()) >= g.cfg.Freshness {
		recordOrder("stale")
		slog.Debug("ignoring stale order",
			slog.String("order_id", order.ID),
			slog.Time("created_at", order.CreatedAt))
		return
	}

	if g.deduper != nil {
		first, err := g.deduper.Claim(ctx, "order-notified:"+order.ID, g.cfg.DedupeTTL)
		if err != nil {
			slog.Warn("dedupe unavailable, notifying anyway",
				slog.String("order_id", order.ID),
				slog.Any("error", err))
		} else if !first {
			recordOrder("duplicate")
			return
		}
	}

	delivered, err := g.notifier.NotifyNewOrder(ctx, order)
	if g.cfg.SLO != nil {
		g.cfg.SLO.Observe(err == nil && delivered, order.Age(g.now()))
	}
	switch {
	case err != nil:
		recordOrder("failed")
		slog.Warn("new order notification failed",
			slog.String("order_id", order.ID),
			slog.Any("error", err))
	case !delivered:
		recordOrder("undelivered")
		slog.Warn("new order notification not delivered", slog.String("order_id", order.ID))
	default:
		recordOrder("notified")
		slog.Info("new order announced",
			slog.String("order_id", order.ID),
			slog.String("order_number", order.OrderNumber))
	}
}
