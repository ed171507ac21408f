package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/resilience/circuitbreaker"
	"perfumery-notify/internal/resilience/retry"
	"perfumery-notify/internal/usecase/compose"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// backgroundTimeout bounds one background notification, a full guaranteed
// sequence included.
const backgroundTimeout = 3 * time.Minute

// Service composes notifications and delivers them to the resolved
// recipients.
//
// Notify* methods report delivery as a bool. The error is reserved for
// configuration problems (ErrMissingCredential, ErrNoRecipients,
// ErrEmptyMessage) and store failures, all detected before any network call.
type Service struct {
	composer *compose.Composer
	resolver *Resolver
	fanout   *Fanout
	policy   retry.Policy

	wg             sync.WaitGroup
	mu             sync.Mutex
	closed         bool
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithMaxRetries sets the default number of guaranteed-send cycles, the
// first included. Values below one keep the policy default.
func WithMaxRetries(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.policy.MaxAttempts = n
		}
	}
}

// NewService wires the composer, resolver and fan-out together.
func NewService(composer *compose.Composer, resolver *Resolver, fanout *Fanout, opts ...ServiceOption) *Service {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	policy := retry.GuaranteedSendPolicy()
	policy.Retryable = func(err error) bool { return !IsConfigurationError(err) }

	s := &Service{
		composer:       composer,
		resolver:       resolver,
		fanout:         fanout,
		policy:         policy,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyNewOrder sends the full new-order message.
func (s *Service) NotifyNewOrder(ctx context.Context, order *entity.Order) (bool, error) {
	return s.deliver(ctx, "new_order", orderID(order), s.composer.Order(order))
}

// NotifyStatusChange sends the short status-change message.
func (s *Service) NotifyStatusChange(ctx context.Context, order *entity.Order, tr compose.Transition) (bool, error) {
	return s.deliver(ctx, "status_change", orderID(order), s.composer.StatusChange(order, tr))
}

// NotifyContactMessage sends a contact-form submission.
func (s *Service) NotifyContactMessage(ctx context.Context, msg *entity.ContactMessage) (bool, error) {
	subject := ""
	if msg != nil {
		subject = fmt.Sprintf("contact:%d", msg.ID)
	}
	return s.deliver(ctx, "contact_message", subject, s.composer.ContactMessage(msg))
}

func (s *Service) deliver(ctx context.Context, kind, subject, message string) (bool, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}

	if strings.TrimSpace(message) == "" {
		return false, ErrEmptyMessage
	}

	snap, err := s.resolver.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	if snap.Credential == "" {
		slog.Warn("Notification skipped: bot token not configured",
			slog.String("request_id", requestID),
			slog.String("kind", kind))
		return false, ErrMissingCredential
	}
	if len(snap.Recipients) == 0 {
		slog.Warn("Notification skipped: no recipients configured",
			slog.String("request_id", requestID),
			slog.String("kind", kind))
		return false, ErrNoRecipients
	}

	slog.Info("Dispatching notification",
		slog.String("request_id", requestID),
		slog.String("kind", kind),
		slog.String("subject", subject),
		slog.Int("recipients", len(snap.Recipients)),
		slog.String("preview", compose.Preview(message, 80)))

	return s.fanout.Fanout(ctx, snap.Credential, message, snap.Recipients), nil
}

// MaxRetries is the number of guaranteed-send cycles used when Options
// leaves MaxRetries at zero.
func (s *Service) MaxRetries() int {
	return s.policy.MaxAttempts
}

// Recipients returns the currently resolved recipient list.
func (s *Service) Recipients(ctx context.Context) ([]string, error) {
	return s.resolver.Resolve(ctx)
}

// Health returns the per-recipient breaker states.
func (s *Service) Health() []circuitbreaker.BreakerStatus {
	return s.fanout.Health()
}

// Go runs fn in the background, detached from the cancellation of ctx but
// keeping its values (the request id among them) and bound to the service
// lifetime. Callers use it when a response must not wait for delivery.
// It returns ErrShuttingDown after Shutdown.
func (s *Service) Go(ctx context.Context, kind string, fn func(ctx context.Context) (bool, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	parent := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in background notification",
					slog.String("kind", kind),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()

		ctx, cancel := context.WithTimeout(parent, backgroundTimeout)
		defer cancel()
		stop := context.AfterFunc(s.shutdownCtx, cancel)
		defer stop()

		delivered, err := fn(ctx)
		if err != nil || !delivered {
			slog.Warn("Background notification not delivered",
				slog.String("kind", kind),
				slog.Any("error", err))
		}
	}()
	return nil
}

// Shutdown stops accepting background work and waits for in-flight
// notifications until ctx is done, then cancels them.
func (s *Service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down notification service")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.shutdownCancel()
		slog.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		s.shutdownCancel()
		slog.Warn("Notification service shutdown timeout")
		return ctx.Err()
	}
}

// WithRequestID returns a context whose notifications log under id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func orderID(o *entity.Order) string {
	if o == nil {
		return ""
	}
	return o.ID
}
