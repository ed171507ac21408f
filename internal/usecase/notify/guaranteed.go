package notify

import (
	"context"
	"fmt"
	"log/slog"

	"perfumery-notify/internal/domain/entity"
)

// Options tunes one guaranteed send. Zero values use the defaults.
type Options struct {
	// MaxRetries is the total number of cycles, the first included.
	// Zero means the service default.
	MaxRetries int

	// OnSuccess is called once, after the first delivered cycle.
	OnSuccess func()

	// OnFailure is called once with the last error when every cycle failed.
	OnFailure func(err error)
}

// Result is the outcome of a guaranteed send.
type Result struct {
	Success  bool  `json:"success"`
	Attempts int   `json:"attempts"`
	Err      error `json:"-"`
}

// SendWithGuarantee repeats the whole compose, resolve and fan-out cycle for
// order until one recipient receives it or the attempts run out, waiting
// 2s, 4s, 8s, 16s between cycles. Each call is independent, so concurrent
// callers share nothing but the recipient breakers.
//
// Incomplete settings (see IsConfigurationError) end the sequence after the
// cycle that found them. Cancelling ctx during a wait ends it as a failure
// carrying the context error.
func (s *Service) SendWithGuarantee(ctx context.Context, order *entity.Order, opts Options) Result {
	policy := s.policy
	if opts.MaxRetries > 0 {
		policy.MaxAttempts = opts.MaxRetries
	}

	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			// pick up settings fixed since the last cycle
			s.resolver.Invalidate()
		}
		delivered, err := s.NotifyNewOrder(ctx, order)
		if err != nil {
			return err
		}
		if !delivered {
			return ErrDeliveryFailed
		}
		return nil
	})

	res := Result{Success: err == nil, Attempts: attempts, Err: err}
	RecordGuaranteed(res.Success, attempts)

	if res.Success {
		if opts.OnSuccess != nil {
			opts.OnSuccess()
		}
		return res
	}

	slog.Error("guaranteed notification failed",
		slog.String("order_id", orderID(order)),
		slog.Int("attempts", attempts),
		slog.Any("error", err))
	if opts.OnFailure != nil {
		opts.OnFailure(fmt.Errorf("order %s notification: %w", orderID(order), err))
	}
	return res
}
