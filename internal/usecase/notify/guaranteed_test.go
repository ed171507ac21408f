package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/resilience/retry"
	"perfumery-notify/internal/usecase/compose"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// succeedAfter fails the first n sends and succeeds afterwards.
func succeedAfter(n int32) func(string) bool {
	var calls atomic.Int32
	return func(string) bool { return calls.Add(1) > n }
}

func guaranteedService(sender Sender, settings SettingsSource) (*Service, *sleepRecorder) {
	svc := testService(sender, settings, nil)
	rec := &sleepRecorder{}
	svc.policy.Sleep = rec.sleep
	return svc, rec
}

func singleRecipient() *stubSettings {
	return &stubSettings{settings: &entity.NotificationSettings{BotToken: "1:x", PrimaryChatID: "100"}}
}

func TestSendWithGuarantee_FirstAttempt(t *testing.T) {
	sender := &mockSender{}
	svc, rec := guaranteedService(sender, singleRecipient())

	var successes, failures int
	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{
		OnSuccess: func() { successes++ },
		OnFailure: func(error) { failures++ },
	})

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, failures)
	assert.Empty(t, rec.get())
}

func TestSendWithGuarantee_SucceedsOnThirdAttempt(t *testing.T) {
	sender := &mockSender{fn: succeedAfter(2)}
	svc, rec := guaranteedService(sender, singleRecipient())

	var successes int
	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{OnSuccess: func() { successes++ }})

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 1, successes)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.get())
	assert.Len(t, sender.getCalls(), 3)
}

func TestSendWithGuarantee_Exhausted(t *testing.T) {
	sender := &mockSender{fn: func(string) bool { return false }}
	svc, rec := guaranteedService(sender, singleRecipient())

	var successes, failures int
	var lastErr error
	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{
		OnSuccess: func() { successes++ },
		OnFailure: func(err error) {
			failures++
			lastErr = err
		},
	})

	assert.False(t, res.Success)
	assert.Equal(t, 5, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrDeliveryFailed)
	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures)
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, ErrDeliveryFailed)
	assert.Contains(t, lastErr.Error(), "ord-1")

	// waits only between attempts, never after the last one
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, rec.get())
	assert.Len(t, sender.getCalls(), 5)
}

func TestSendWithGuarantee_MaxRetries(t *testing.T) {
	sender := &mockSender{fn: func(string) bool { return false }}
	svc, rec := guaranteedService(sender, singleRecipient())

	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{MaxRetries: 2})

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.get())
}

func TestSendWithGuarantee_ConfigurationErrorStopsRetrying(t *testing.T) {
	tests := []struct {
		name     string
		settings *entity.NotificationSettings
		wantErr  error
	}{
		{"missing token", &entity.NotificationSettings{PrimaryChatID: "100"}, ErrMissingCredential},
		{"no recipients", &entity.NotificationSettings{BotToken: "1:x"}, ErrNoRecipients},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &stubSettings{settings: tt.settings}
			sender := &mockSender{}
			svc, rec := guaranteedService(sender, settings)

			var failures int
			res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{
				MaxRetries: 5,
				OnFailure:  func(error) { failures++ },
			})

			assert.False(t, res.Success)
			assert.Equal(t, 1, res.Attempts)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.True(t, IsConfigurationError(res.Err))
			assert.Equal(t, 1, failures)
			assert.Empty(t, rec.get(), "no backoff for incomplete settings")
			assert.Empty(t, sender.getCalls())
			assert.Equal(t, 1, settings.getReads())
		})
	}
}

// settingsFunc adapts a function to SettingsSource.
type settingsFunc func(ctx context.Context) (*entity.NotificationSettings, error)

func (f settingsFunc) GetNotificationSettings(ctx context.Context) (*entity.NotificationSettings, error) {
	return f(ctx)
}

func TestSendWithGuarantee_RereadsSettingsBetweenAttempts(t *testing.T) {
	var reads atomic.Int32
	settings := settingsFunc(func(context.Context) (*entity.NotificationSettings, error) {
		// the operator fixes the chat id after the first cycle
		if reads.Add(1) == 1 {
			return &entity.NotificationSettings{BotToken: "1:x", PrimaryChatID: "wrong"}, nil
		}
		return &entity.NotificationSettings{BotToken: "1:x", PrimaryChatID: "100"}, nil
	})
	sender := &mockSender{fn: func(chatID string) bool { return chatID == "100" }}
	svc, rec := guaranteedService(sender, settings)

	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"wrong", "100"}, sender.chats())
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.get())
}

func TestSendWithGuarantee_ServiceMaxRetries(t *testing.T) {
	sender := &mockSender{fn: func(string) bool { return false }}
	resolver := NewResolver(singleRecipient(), nil, time.Minute)
	svc := NewService(compose.New(compose.DefaultConfig()), resolver, testFanout(sender), WithMaxRetries(3))
	rec := &sleepRecorder{}
	svc.policy.Sleep = rec.sleep
	require.Equal(t, 3, svc.MaxRetries())

	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{})
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, sender.getCalls(), 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.get())

	res = svc.SendWithGuarantee(context.Background(), testOrder(), Options{MaxRetries: 1})
	assert.Equal(t, 1, res.Attempts, "per-call option wins over the service default")

	assert.Equal(t, 5, NewService(nil, resolver, testFanout(sender), WithMaxRetries(0)).MaxRetries())
}

func TestSendWithGuarantee_ProductionBreakerKeepsCyclesLive(t *testing.T) {
	sender := &mockSender{fn: succeedAfter(5)}
	resolver := NewResolver(singleRecipient(), nil, time.Minute)
	svc := NewService(compose.New(compose.DefaultConfig()), resolver, NewFanout(sender, DefaultFanoutConfig()))
	rec := &sleepRecorder{}
	svc.policy.Sleep = rec.sleep

	res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{MaxRetries: 10})

	require.True(t, res.Success)
	assert.Equal(t, 6, res.Attempts)
	assert.Len(t, sender.getCalls(), 6, "every cycle reaches the provider")

	delivered, err := svc.NotifyNewOrder(context.Background(), testOrder())
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Len(t, sender.getCalls(), 7)
}

func TestSendWithGuarantee_ContextCancelledDuringBackoff(t *testing.T) {
	sender := &mockSender{fn: func(string) bool { return false }}
	svc := testService(sender, singleRecipient(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	var failures int
	res := svc.SendWithGuarantee(ctx, testOrder(), Options{OnFailure: func(error) { failures++ }})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, failures)
}

func TestSendWithGuarantee_ConcurrentCallersAreIndependent(t *testing.T) {
	sender := &mockSender{}
	svc, _ := guaranteedService(sender, singleRecipient())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	var successes atomic.Int32
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.SendWithGuarantee(context.Background(), testOrder(), Options{
				OnSuccess: func() { successes.Add(1) },
			})
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, 1, r.Attempts)
	}
	assert.Equal(t, int32(callers), successes.Load())
}

func TestWorstCaseAttemptsPerRecipient(t *testing.T) {
	assert.Equal(t, 20, retry.WorstCaseAttempts(retry.TelegramSendPolicy(), retry.GuaranteedSendPolicy()))
}

func TestSendWithGuarantee_NilCallbacks(t *testing.T) {
	sender := &mockSender{fn: func(string) bool { return false }}
	svc, _ := guaranteedService(sender, singleRecipient())

	assert.NotPanics(t, func() {
		res := svc.SendWithGuarantee(context.Background(), testOrder(), Options{MaxRetries: 1})
		assert.False(t, res.Success)
	})
}
