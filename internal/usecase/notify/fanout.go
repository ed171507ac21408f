package notify

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/resilience/circuitbreaker"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 10

var errNotDelivered = errors.New("message not delivered")

// FanoutConfig tunes Fanout.
type FanoutConfig struct {
	// Concurrency caps simultaneous per-recipient sends.
	Concurrency int

	// RecipientTimeout bounds one recipient's send, inner retries included.
	// It must cover the sender's worst case or the inner retries are cut
	// short; see notifier.TelegramConfig.MaxSendDuration.
	RecipientTimeout time.Duration

	// Breaker builds the per-recipient breaker config.
	// Nil means circuitbreaker.TelegramChatConfig.
	Breaker func(chatID string) circuitbreaker.Config
}

// DefaultFanoutConfig returns the production settings.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		Concurrency:      defaultConcurrency,
		RecipientTimeout: notifier.DefaultTelegramConfig().MaxSendDuration(),
		Breaker:          circuitbreaker.TelegramChatConfig,
	}
}

// Fanout sends one message to many recipients concurrently.
type Fanout struct {
	sender   Sender
	cfg      FanoutConfig
	breakers *circuitbreaker.Group
}

// NewFanout creates a Fanout around sender.
func NewFanout(sender Sender, cfg FanoutConfig) *Fanout {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	newCfg := cfg.Breaker
	if newCfg == nil {
		newCfg = circuitbreaker.TelegramChatConfig
	}

	return &Fanout{
		sender: sender,
		cfg:    cfg,
		breakers: circuitbreaker.NewGroup(func(chatID string) circuitbreaker.Config {
			c := newCfg(chatID)
			c.OnStateChange = func(_ string, _, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					RecordCircuitBreakerOpen(chatID)
				}
			}
			return c
		}),
	}
}

// Fanout delivers message to every chat and waits for all of them. It reports
// true when at least one recipient got the message. An empty list returns
// false without any network call. A failing or panicking recipient never
// affects the others, and a recipient with an open breaker is still tried.
func (f *Fanout) Fanout(ctx context.Context, credential, message string, chatIDs []string) bool {
	if len(chatIDs) == 0 {
		RecordFanout("no_recipients")
		return false
	}

	fanoutID := uuid.New().String()
	var delivered atomic.Int32

	var g errgroup.Group
	g.SetLimit(f.cfg.Concurrency)
	for _, chatID := range chatIDs {
		chatID := chatID
		g.Go(func() error {
			if f.deliver(ctx, fanoutID, credential, message, chatID) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(delivered.Load())
	if n == 0 {
		RecordFanout("failed")
		slog.Warn("notification reached no recipient",
			slog.String("fanout_id", fanoutID),
			slog.Int("recipients", len(chatIDs)))
		return false
	}

	RecordFanout("delivered")
	slog.Info("notification fan-out complete",
		slog.String("fanout_id", fanoutID),
		slog.Int("recipients", len(chatIDs)),
		slog.Int("delivered", n))
	return true
}

func (f *Fanout) deliver(ctx context.Context, fanoutID, credential, message, chatID string) (ok bool) {
	IncrementActiveGoroutines()
	defer DecrementActiveGoroutines()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in notification delivery",
				slog.String("fanout_id", fanoutID),
				slog.String("chat_id", chatID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			RecordDropped(chatID, "panic")
			ok = false
		}
	}()

	if f.cfg.RecipientTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.RecipientTimeout)
		defer cancel()
	}

	RecordDispatch(chatID)
	start := time.Now()

	// Only transient failures count against the breaker.
	var delivered bool
	err := f.breakers.Get(chatID).Run(func() error {
		var transient bool
		delivered, transient = f.send(ctx, credential, chatID, message)
		if delivered || !transient {
			return nil
		}
		return errNotDelivered
	})

	if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		// An open breaker marks the chat unhealthy but never skips it.
		slog.Info("sending to recipient with open circuit breaker",
			slog.String("fanout_id", fanoutID),
			slog.String("chat_id", chatID))
		delivered, _ = f.send(ctx, credential, chatID, message)
		RecordOpenBreakerSend(chatID, delivered)
		if delivered {
			f.breakers.Reset(chatID)
			slog.Info("recipient recovered, circuit breaker reset",
				slog.String("fanout_id", fanoutID),
				slog.String("chat_id", chatID))
		}
	}
	duration := time.Since(start)

	if delivered {
		RecordSuccess(chatID, duration)
		return true
	}
	RecordFailure(chatID, duration)
	slog.Warn("recipient delivery failed",
		slog.String("fanout_id", fanoutID),
		slog.String("chat_id", chatID),
		slog.Duration("send_duration", duration))
	return false
}

// send performs one delivery and reports whether a failure may heal by
// itself. Plain Senders cannot tell, so their failures count as transient.
func (f *Fanout) send(ctx context.Context, credential, chatID, message string) (delivered, transient bool) {
	rich, ok := f.sender.(OutcomeSender)
	if !ok {
		delivered = f.sender.Send(ctx, credential, chatID, message)
		return delivered, !delivered && !errors.Is(ctx.Err(), context.Canceled)
	}

	res, err := rich.SendMessage(ctx, credential, chatID, message)
	if err == nil {
		return true, false
	}
	if errors.Is(err, context.Canceled) {
		return false, false
	}
	return false, res.Outcome.Kind != notifier.OutcomeFatal
}

// Health reports the breaker state of every recipient seen so far.
func (f *Fanout) Health() []circuitbreaker.BreakerStatus {
	return f.breakers.Snapshot()
}
