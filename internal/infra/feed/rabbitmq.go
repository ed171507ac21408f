package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/retry"
)

var errChannelClosed = errors.New("amqp channel closed")

// consumer is one open AMQP consumer.
type consumer interface {
	Deliveries() <-chan amqp.Delivery
	Closed() <-chan *amqp.Error
	Close() error
}

// RabbitFeed consumes JSON orders from a durable queue with manual acks.
type RabbitFeed struct {
	dial   func(ctx context.Context) (consumer, error)
	policy retry.Policy
}

// NewRabbitFeed creates a feed consuming queue on the broker at url. At most
// prefetch deliveries are unacknowledged at a time.
func NewRabbitFeed(url, queue string, prefetch int, policy retry.Policy) *RabbitFeed {
	return &RabbitFeed{
		dial: func(context.Context) (consumer, error) {
			return dialConsumer(url, queue, prefetch)
		},
		policy: policy,
	}
}

// Subscribe implements repository.OrderFeed.
func (f *RabbitFeed) Subscribe(ctx context.Context) (repository.OrderSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context, s *subscription) {
		supervise(ctx, s, "rabbitmq", f.policy, f.session)
	}), nil
}

func (f *RabbitFeed) session(ctx context.Context, s *subscription) (bool, error) {
	c, err := f.dial(ctx)
	if err != nil {
		return false, classifyAMQP("consume", err)
	}
	defer func() { _ = c.Close() }()

	deliveries := c.Deliveries()
	closed := c.Closed()
	for {
		select {
		case <-ctx.Done():
			return true, nil

		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return true, classifyAMQP("channel", amqpErr)
			}
			return true, errChannelClosed

		case d, ok := <-deliveries:
			if !ok {
				return true, errChannelClosed
			}
			if !f.handle(ctx, s, d) {
				return true, nil
			}
		}
	}
}

// handle passes one delivery on. Malformed bodies are acked so they are not
// redelivered forever. It reports false when ctx ended before the hand-over.
func (f *RabbitFeed) handle(ctx context.Context, s *subscription, d amqp.Delivery) bool {
	order, err := decodeOrder(d.Body)
	if err != nil {
		received.WithLabelValues("rabbitmq", "malformed").Inc()
		s.report(fmt.Errorf("delivery %d: %w", d.DeliveryTag, err))
		if err := d.Ack(false); err != nil {
			slog.Warn("amqp ack failed", slog.Any("error", err))
		}
		return true
	}

	if !s.emit(ctx, order) {
		_ = d.Nack(false, true)
		return false
	}
	received.WithLabelValues("rabbitmq", "emitted").Inc()
	if err := d.Ack(false); err != nil {
		slog.Warn("amqp ack failed", slog.Any("error", err))
	}
	return true
}

func classifyAMQP(op string, err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.AccessRefused {
		return fmt.Errorf("%s: %w: %s", op, repository.ErrPermissionDenied, amqpErr.Reason)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type channelConsumer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	closed     chan *amqp.Error
}

func dialConsumer(url, queue string, prefetch int) (*channelConsumer, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	fail := func(err error) (*channelConsumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fail(err)
		}
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fail(err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fail(err)
	}

	return &channelConsumer{
		conn:       conn,
		ch:         ch,
		deliveries: deliveries,
		closed:     ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func (c *channelConsumer) Deliveries() <-chan amqp.Delivery { return c.deliveries }
func (c *channelConsumer) Closed() <-chan *amqp.Error       { return c.closed }

func (c *channelConsumer) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}
