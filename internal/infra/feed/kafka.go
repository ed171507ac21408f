package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"perfumery-notify/internal/repository"
	"perfumery-notify/internal/resilience/retry"
)

// messageReader is the part of *kafka.Reader the feed uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed consumes JSON orders from a topic as part of a consumer group.
// Offsets are committed after the order has been handed over.
type KafkaFeed struct {
	newReader func() messageReader
	policy    retry.Policy
}

// NewKafkaFeed creates a feed reading topic on the comma separated brokers.
func NewKafkaFeed(brokersCSV, topic, groupID string, policy retry.Policy) *KafkaFeed {
	brokers := splitBrokers(brokersCSV)
	return &KafkaFeed{
		newReader: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokers,
				Topic:    topic,
				GroupID:  groupID,
				MinBytes: 1,
				MaxBytes: 10e6,
			})
		},
		policy: policy,
	}
}

func splitBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Subscribe implements repository.OrderFeed.
func (f *KafkaFeed) Subscribe(ctx context.Context) (repository.OrderSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return start(ctx, func(ctx context.Context, s *subscription) {
		supervise(ctx, s, "kafka", f.policy, f.session)
	}), nil
}

func (f *KafkaFeed) session(ctx context.Context, s *subscription) (bool, error) {
	r := f.newReader()
	defer func() { _ = r.Close() }()

	connected := false
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			return connected, classifyKafka("fetch", err)
		}
		connected = true

		order, err := decodeOrder(msg.Value)
		if err != nil {
			received.WithLabelValues("kafka", "malformed").Inc()
			s.report(fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err))
		} else {
			if !s.emit(ctx, order) {
				return connected, nil
			}
			received.WithLabelValues("kafka", "emitted").Inc()
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			return connected, classifyKafka("commit", err)
		}
	}
}

func classifyKafka(op string, err error) error {
	if errors.Is(err, kafka.TopicAuthorizationFailed) || errors.Is(err, kafka.GroupAuthorizationFailed) {
		return fmt.Errorf("%s: %w: %v", op, repository.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
