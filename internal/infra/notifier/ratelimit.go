package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request a client makes, so
// concurrent fan-out to many chats stays under the bot-wide API limit.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows up to burst requests at once, refilled at
// requestsPerSecond.
//
// Example:
//
//	limiter := NewRateLimiter(25, 5)  // 25 req/s with burst of 5
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow blocks until a token is available or the context is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Limit returns the sustained rate in requests per second.
func (r *RateLimiter) Limit() float64 {
	return float64(r.limiter.Limit())
}

// Burst returns the bucket size.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}
