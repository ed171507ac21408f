package auth

import (
	"context"
	"log/slog"
	"time"
)

// SessionSource loads the current identity, e.g. by issuing or reading a
// service token.
type SessionSource func(ctx context.Context) (Identity, error)

// SessionWatcher turns a SessionSource into a stream of identity changes.
//
// It emits the loaded identity, then the zero Identity when that identity
// expires, then loads again. A failed load emits the zero Identity and is
// retried after RetryDelay.
type SessionWatcher struct {
	Source     SessionSource
	RetryDelay time.Duration

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewSessionWatcher creates a watcher that reloads failed sessions every
// retryDelay.
func NewSessionWatcher(source SessionSource, retryDelay time.Duration) *SessionWatcher {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &SessionWatcher{
		Source:     source,
		RetryDelay: retryDelay,
		now:        time.Now,
		after:      time.After,
	}
}

// Watch streams identities until ctx is done, then closes the channel.
func (w *SessionWatcher) Watch(ctx context.Context) <-chan Identity {
	out := make(chan Identity)
	go func() {
		defer close(out)
		for {
			id, err := w.Source(ctx)
			wait := w.RetryDelay
			if err != nil {
				slog.Warn("session load failed", slog.Any("error", err))
				id = Identity{}
			} else if !id.ExpiresAt.IsZero() {
				wait = id.ExpiresAt.Sub(w.now())
			}

			if !send(ctx, out, id) {
				return
			}
			if !id.Privileged() && err == nil {
				slog.Info("session is not privileged", slog.String("subject", id.Subject), slog.String("role", id.Role))
			}

			select {
			case <-ctx.Done():
				return
			case <-w.after(wait):
			}

			if id.Privileged() {
				slog.Info("session expired", slog.String("subject", id.Subject))
				if !send(ctx, out, Identity{}) {
					return
				}
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- Identity, id Identity) bool {
	select {
	case out <- id:
		return true
	case <-ctx.Done():
		return false
	}
}
