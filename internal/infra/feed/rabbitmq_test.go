package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/repository"
)

type ackLog struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeues []bool
}

func (a *ackLog) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackLog) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *ackLog) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *ackLog) snapshot() (acks, nacks []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acks...), append([]uint64(nil), a.nacks...)
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	closedCh   chan *amqp.Error
	closed     atomic.Bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{
		deliveries: make(chan amqp.Delivery, 4),
		closedCh:   make(chan *amqp.Error, 1),
	}
}

func (c *fakeConsumer) Deliveries() <-chan amqp.Delivery { return c.deliveries }
func (c *fakeConsumer) Closed() <-chan *amqp.Error       { return c.closedCh }
func (c *fakeConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

func rabbitFeedWith(consumers ...*fakeConsumer) (*RabbitFeed, *atomic.Int32) {
	var dials atomic.Int32
	return &RabbitFeed{
		policy: immediate(),
		dial: func(ctx context.Context) (consumer, error) {
			n := int(dials.Add(1))
			if n > len(consumers) {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return consumers[n-1], nil
		},
	}, &dials
}

func delivery(acks *ackLog, tag uint64, body []byte) amqp.Delivery {
	return amqp.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: body}
}

func TestRabbitFeed_AcksHandledAndMalformed(t *testing.T) {
	acks := &ackLog{}
	c := newFakeConsumer()
	c.deliveries <- delivery(acks, 1, []byte(`{`))
	c.deliveries <- delivery(acks, 2, orderDoc(t, "ord-1"))

	f, _ := rabbitFeedWith(c)
	sub, err := f.Subscribe(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, nextError(t, sub), errMalformed)
	assert.Equal(t, "ord-1", nextOrder(t, sub).ID)

	require.Eventually(t, func() bool {
		got, _ := acks.snapshot()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	got, nacks := acks.snapshot()
	assert.Equal(t, []uint64{1, 2}, got)
	assert.Empty(t, nacks)

	requireClosed(t, sub)
	assert.True(t, c.closed.Load())
}

func TestRabbitFeed_RequeuesWhenCanceledBeforeHandOver(t *testing.T) {
	acks := &ackLog{}
	s := &subscription{orders: make(chan *entity.Order), errs: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := rabbitFeedWith()
	assert.False(t, f.handle(ctx, s, delivery(acks, 5, orderDoc(t, "ord-1"))))

	got, nacks := acks.snapshot()
	assert.Empty(t, got)
	assert.Equal(t, []uint64{5}, nacks)
	assert.Equal(t, []bool{true}, acks.requeues)
}

func TestRabbitFeed_AccessRefusedReconnects(t *testing.T) {
	first := newFakeConsumer()
	first.closedCh <- &amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}
	second := newFakeConsumer()
	second.deliveries <- delivery(&ackLog{}, 1, orderDoc(t, "ord-1"))

	f, dials := rabbitFeedWith(first, second)
	sub, err := f.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	assert.ErrorIs(t, nextError(t, sub), repository.ErrPermissionDenied)
	assert.Equal(t, "ord-1", nextOrder(t, sub).ID)
	assert.Equal(t, int32(2), dials.Load())
	assert.True(t, first.closed.Load())
}

func TestRabbitFeed_ClosedDeliveriesReconnect(t *testing.T) {
	first := newFakeConsumer()
	close(first.deliveries)
	second := newFakeConsumer()
	second.deliveries <- delivery(&ackLog{}, 1, orderDoc(t, "ord-1"))

	f, _ := rabbitFeedWith(first, second)
	sub, err := f.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	assert.ErrorIs(t, nextError(t, sub), errChannelClosed)
	assert.Equal(t, "ord-1", nextOrder(t, sub).ID)
}

func TestClassifyAMQP(t *testing.T) {
	err := classifyAMQP("consume", &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND"})
	assert.False(t, errors.Is(err, repository.ErrPermissionDenied))
	assert.ErrorIs(t, classifyAMQP("consume", &amqp.Error{Code: amqp.AccessRefused}), repository.ErrPermissionDenied)
}
