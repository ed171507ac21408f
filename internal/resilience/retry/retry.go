// Package retry provides bounded retry policies with pluggable backoff.
//
// Delivery uses two policies layered on top of each other: an inner policy
// around a single provider request and an outer policy around a whole
// compose/resolve/fan-out cycle. Their worst-case product is reported by
// WorstCaseAttempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Backoff returns the delay to wait after the given failed attempt
// (1-based) before the next one starts.
type Backoff func(attempt int) time.Duration

// Linear waits base*attempt: base, 2*base, 3*base...
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential waits initial*multiplier^(attempt-1): for initial=2s and
// multiplier=2 that is 2s, 4s, 8s, 16s.
func Exponential(initial time.Duration, multiplier float64) Backoff {
	return func(attempt int) time.Duration {
		d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if d >= math.MaxInt64 || math.IsInf(d, 0) {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)
	}
}

// Constant waits the same delay after every attempt.
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// DelayHinter is implemented by errors that carry a server-requested wait,
// such as a rate-limit response with retry_after.
type DelayHinter interface {
	RetryAfter() time.Duration
}

// Policy describes one retry layer.
type Policy struct {
	// Name identifies the policy in logs.
	Name string

	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	Backoff Backoff

	// MaxDelay caps any single wait, including server hints. Zero means no cap.
	MaxDelay time.Duration

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// TelegramSendPolicy is the inner policy for a single sendMessage call:
// 4 attempts with linear backoff of 1s, 2s, 3s.
func TelegramSendPolicy() Policy {
	return Policy{
		Name:        "telegram_send",
		MaxAttempts: 4,
		Backoff:     Linear(1 * time.Second),
		MaxDelay:    30 * time.Second,
	}
}

// GuaranteedSendPolicy is the outer policy that repeats a whole notification
// cycle: 5 attempts with exponential backoff of 2s, 4s, 8s, 16s.
func GuaranteedSendPolicy() Policy {
	return Policy{
		Name:        "guaranteed_send",
		MaxAttempts: 5,
		Backoff:     Exponential(2*time.Second, 2.0),
		Retryable:   func(error) bool { return true },
	}
}

// ReconnectPolicy is used by long-lived subscriptions between reconnects.
func ReconnectPolicy() Policy {
	return Policy{
		Name:           "reconnect",
		MaxAttempts:    math.MaxInt32,
		Backoff:        Exponential(1*time.Second, 2.0),
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.1,
		Retryable:      func(error) bool { return true },
	}
}

// DBConfig returns a policy tuned for database connection checks.
func DBConfig() Policy {
	return Policy{
		Name:           "db",
		MaxAttempts:    3,
		Backoff:        Exponential(100*time.Millisecond, 2.0),
		MaxDelay:       1 * time.Second,
		JitterFraction: 0.1,
	}
}

// WorstCaseAttempts is the number of innermost attempts when inner runs
// inside every attempt of outer.
func WorstCaseAttempts(inner, outer Policy) int {
	return inner.MaxAttempts * outer.MaxAttempts
}

// MaxElapsed is the longest Do can take when every attempt runs for
// attemptTimeout and fails. Waits count at MaxDelay when set, since a
// server hint may stretch any of them up to the cap. Jitter is ignored.
func (p Policy) MaxElapsed(attemptTimeout time.Duration) time.Duration {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	total := time.Duration(attempts) * attemptTimeout
	for a := 1; a < attempts; a++ {
		switch {
		case p.MaxDelay > 0:
			total += p.MaxDelay
		case p.Backoff != nil:
			total += p.Backoff(a)
		}
	}
	return total
}

// Delay computes the wait after the given failed attempt, honouring a
// DelayHinter in err when it asks for longer than the backoff.
func (p Policy) Delay(attempt int, err error) time.Duration {
	var delay time.Duration
	if p.Backoff != nil {
		delay = p.Backoff(attempt)
	}

	var hint DelayHinter
	if errors.As(err, &hint) {
		if h := hint.RetryAfter(); h > delay {
			delay = h
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	delay = addJitter(delay, p.JitterFraction)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Wait blocks for d or until ctx is done, using Sleep when set.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. It reports how many attempts were made. No wait
// happens after the final attempt.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.String("policy", p.Name),
					slog.Int("attempt", attempt))
			}
			return attempt, nil
		}

		if !retryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.String("policy", p.Name),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return attempt, lastErr
		}

		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt, lastErr)
		slog.Warn("operation failed, retrying",
			slog.String("policy", p.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		if err := p.Wait(ctx, delay); err != nil {
			return attempt, fmt.Errorf("retry aborted: %w", errors.Join(err, lastErr))
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// ExhaustedError is returned by Do when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// The caller gave up; retrying would ignore that.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Per-attempt timeouts surface as DeadlineExceeded and are transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
