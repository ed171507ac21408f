// Package feed provides live order feeds over Postgres LISTEN/NOTIFY, Kafka
// and RabbitMQ. Every feed reconnects on its own and reports transient
// problems on the subscription's Errors channel.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/resilience/retry"
)

// errBuffer bounds queued errors. New errors are dropped while it is full.
const errBuffer = 16

var errMalformed = errors.New("malformed order document")

type subscription struct {
	orders chan *entity.Order
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
}

func start(ctx context.Context, run func(ctx context.Context, s *subscription)) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		orders: make(chan *entity.Order),
		errs:   make(chan error, errBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.orders)
		run(ctx, s)
	}()
	return s
}

func (s *subscription) Orders() <-chan *entity.Order { return s.orders }
func (s *subscription) Errors() <-chan error         { return s.errs }

// Close stops the feed and waits for its goroutine to exit.
func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// emit hands order to the consumer. It reports false when ctx ended first.
func (s *subscription) emit(ctx context.Context, order *entity.Order) bool {
	select {
	case s.orders <- order:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *subscription) report(err error) {
	select {
	case s.errs <- err:
	default:
		slog.Debug("order feed error dropped", slog.Any("error", err))
	}
}

// session runs one connection until it fails or ctx ends. connected tells
// the supervisor whether the connection got far enough to reset backoff.
type session func(ctx context.Context, s *subscription) (connected bool, err error)

// supervise reruns fn until ctx ends, waiting between runs per policy.
func supervise(ctx context.Context, s *subscription, driver string, policy retry.Policy, fn session) {
	failures := 0
	for {
		connected, err := fn(ctx, s)
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		}
		failures++
		if err != nil {
			s.report(err)
		}
		reconnects.WithLabelValues(driver).Inc()

		delay := policy.Delay(failures, err)
		slog.Warn("order feed reconnecting",
			slog.String("driver", driver),
			slog.Int("failures", failures),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if policy.Wait(ctx, delay) != nil {
			return
		}
	}
}

func decodeOrder(data []byte) (*entity.Order, error) {
	var order entity.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: missing id", errMalformed)
	}
	return &order, nil
}
