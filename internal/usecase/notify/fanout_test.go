package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/resilience/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_EmptyRecipients(t *testing.T) {
	sender := &mockSender{}
	f := testFanout(sender)

	assert.False(t, f.Fanout(context.Background(), "1:x", "hello", nil))
	assert.False(t, f.Fanout(context.Background(), "1:x", "hello", []string{}))
	assert.Empty(t, sender.getCalls())
}

func TestFanout_AtLeastOneSuccess(t *testing.T) {
	tests := []struct {
		name      string
		succeeded map[string]bool
		want      bool
	}{
		{"all succeed", map[string]bool{"a": true, "b": true, "c": true}, true},
		{"one succeeds", map[string]bool{"b": true}, true},
		{"none succeed", map[string]bool{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{fn: func(chatID string) bool { return tt.succeeded[chatID] }}
			f := testFanout(sender)

			got := f.Fanout(context.Background(), "1:x", "hello", []string{"a", "b", "c"})

			assert.Equal(t, tt.want, got)
			assert.ElementsMatch(t, []string{"a", "b", "c"}, sender.chats(), "every recipient is attempted exactly once")
		})
	}
}

func TestFanout_RunsConcurrentlyAndWaitsForAll(t *testing.T) {
	sender := &mockSender{delay: 100 * time.Millisecond}
	f := testFanout(sender)
	recipients := []string{"1", "2", "3", "4", "5"}

	start := time.Now()
	ok := f.Fanout(context.Background(), "1:x", "hello", recipients)
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.Len(t, sender.getCalls(), len(recipients))
	assert.Equal(t, int32(len(recipients)), sender.maxInflight.Load())
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestFanout_ConcurrencyLimit(t *testing.T) {
	sender := &mockSender{delay: 20 * time.Millisecond}
	f := NewFanout(sender, FanoutConfig{Concurrency: 2, Breaker: neverTrip})

	ok := f.Fanout(context.Background(), "1:x", "hello", []string{"1", "2", "3", "4", "5", "6"})

	assert.True(t, ok)
	assert.Len(t, sender.getCalls(), 6)
	assert.LessOrEqual(t, sender.maxInflight.Load(), int32(2))
}

type panicSender struct {
	mockSender
	panicOn string
}

func (p *panicSender) Send(ctx context.Context, credential, chatID, text string) bool {
	if chatID == p.panicOn {
		panic("sender exploded")
	}
	return p.mockSender.Send(ctx, credential, chatID, text)
}

func TestFanout_PanicIsIsolated(t *testing.T) {
	sender := &panicSender{panicOn: "bad"}
	f := testFanout(sender)

	before := testutil.ToFloat64(notificationDroppedTotal.WithLabelValues("bad", "panic"))
	ok := f.Fanout(context.Background(), "1:x", "hello", []string{"good", "bad", "also-good"})

	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"good", "also-good"}, sender.chats())
	assert.Equal(t, before+1, testutil.ToFloat64(notificationDroppedTotal.WithLabelValues("bad", "panic")))
}

func TestFanout_PanicOnlyRecipientFails(t *testing.T) {
	f := testFanout(&panicSender{panicOn: "bad"})
	assert.False(t, f.Fanout(context.Background(), "1:x", "hello", []string{"bad"}))
}

// outcomeSender reports why a send failed, like the Telegram client.
type outcomeSender struct {
	mockSender
	failure notifier.Outcome
}

func (o *outcomeSender) SendMessage(ctx context.Context, credential, chatID, text string) (notifier.SendResult, error) {
	if o.mockSender.Send(ctx, credential, chatID, text) {
		return notifier.SendResult{Attempts: 1, Outcome: notifier.Outcome{Kind: notifier.OutcomeSuccess}}, nil
	}
	return notifier.SendResult{Attempts: 1, Outcome: o.failure}, &notifier.APIError{Outcome: o.failure}
}

func TestFanout_OpenBreakerStillTriesRecipient(t *testing.T) {
	var healthy atomic.Bool
	sender := &mockSender{fn: func(chatID string) bool { return chatID != "flaky" || healthy.Load() }}
	f := NewFanout(sender, FanoutConfig{
		Concurrency: 4,
		Breaker: func(chatID string) circuitbreaker.Config {
			cfg := circuitbreaker.TelegramChatConfig(chatID)
			cfg.MinRequests = 1
			return cfg
		},
	})
	ctx := context.Background()
	opened := testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("flaky"))

	require.True(t, f.Fanout(ctx, "1:x", "first", []string{"ok", "flaky"}))
	assert.Equal(t, opened+1, testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("flaky")))

	require.True(t, f.Fanout(ctx, "1:x", "second", []string{"ok", "flaky"}))
	assert.ElementsMatch(t, []string{"ok", "flaky", "ok", "flaky"}, sender.chats(), "an open breaker never skips a recipient")
	assert.Equal(t, []circuitbreaker.BreakerStatus{
		{Key: "flaky", State: "open"},
		{Key: "ok", State: "closed"},
	}, f.Health())

	healthy.Store(true)
	assert.True(t, f.Fanout(ctx, "1:x", "third", []string{"flaky"}))
	assert.Equal(t, []circuitbreaker.BreakerStatus{
		{Key: "flaky", State: "closed"},
		{Key: "ok", State: "closed"},
	}, f.Health(), "a delivered send closes the breaker")
}

func TestFanout_DefaultConfigKeepsSendingToFailingRecipient(t *testing.T) {
	sender := &mockSender{fn: succeedAfter(5)}
	f := NewFanout(sender, DefaultFanoutConfig())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.False(t, f.Fanout(ctx, "1:x", "hello", []string{"100"}), "send %d", i)
	}
	require.Equal(t, []circuitbreaker.BreakerStatus{{Key: "100", State: "open"}}, f.Health())

	assert.True(t, f.Fanout(ctx, "1:x", "hello", []string{"100"}))
	assert.True(t, f.Fanout(ctx, "1:x", "hello", []string{"100"}))
	assert.Len(t, sender.getCalls(), 7)
	assert.Equal(t, []circuitbreaker.BreakerStatus{{Key: "100", State: "closed"}}, f.Health())
}

func TestFanout_FatalOutcomesDoNotTripBreaker(t *testing.T) {
	tests := []struct {
		name     string
		failure  notifier.Outcome
		wantOpen bool
	}{
		{"invalid credential", notifier.Outcome{Kind: notifier.OutcomeFatal, Reason: notifier.ReasonInvalidCredential, StatusCode: 401}, false},
		{"blocked", notifier.Outcome{Kind: notifier.OutcomeFatal, Reason: notifier.ReasonBlocked, StatusCode: 403}, false},
		{"server error", notifier.Outcome{Kind: notifier.OutcomeTransient, Reason: notifier.ReasonServerError, StatusCode: 503}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &outcomeSender{failure: tt.failure}
			sender.fn = func(string) bool { return false }
			f := NewFanout(sender, DefaultFanoutConfig())

			for i := 0; i < 8; i++ {
				assert.False(t, f.Fanout(context.Background(), "1:x", "hello", []string{"100"}))
			}

			assert.Len(t, sender.getCalls(), 8, "every fan-out reaches the provider")
			want := "closed"
			if tt.wantOpen {
				want = "open"
			}
			assert.Equal(t, []circuitbreaker.BreakerStatus{{Key: "100", State: want}}, f.Health())
		})
	}
}

func TestDefaultFanoutConfig_CoversInnerRetries(t *testing.T) {
	cfg := DefaultFanoutConfig()
	assert.Equal(t, notifier.DefaultTelegramConfig().MaxSendDuration(), cfg.RecipientTimeout)
	assert.GreaterOrEqual(t, cfg.RecipientTimeout, 130*time.Second)
}

func TestFanout_RecipientTimeout(t *testing.T) {
	sender := &mockSender{delay: time.Second}
	f := NewFanout(sender, FanoutConfig{Concurrency: 2, RecipientTimeout: 20 * time.Millisecond, Breaker: neverTrip})

	start := time.Now()
	ok := f.Fanout(context.Background(), "1:x", "hello", []string{"slow"})

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
