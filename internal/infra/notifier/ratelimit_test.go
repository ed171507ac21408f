package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Settings(t *testing.T) {
	limiter := NewRateLimiter(25, 5)
	assert.Equal(t, 25.0, limiter.Limit())
	assert.Equal(t, 5, limiter.Burst())

	def := NewTelegramClient(TelegramConfig{})
	assert.Equal(t, 25.0, def.rateLimiter.Limit())
	assert.Equal(t, 5, def.rateLimiter.Burst())
}

func TestRateLimiter_BurstThenPaced(t *testing.T) {
	limiter := NewRateLimiter(20, 2)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Allow(ctx))
	require.NoError(t, limiter.Allow(ctx))
	assert.Less(t, time.Since(start), 30*time.Millisecond, "burst must not wait")

	require.NoError(t, limiter.Allow(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "third token refills at 20/s")
}

func TestRateLimiter_CanceledWhileWaiting(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	require.NoError(t, limiter.Allow(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, limiter.Allow(ctx), context.Canceled)
}

func TestTelegramClient_RateLimitPacesConcurrentFanout(t *testing.T) {
	var (
		mu    sync.Mutex
		seen  = map[string]time.Time{}
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload sendMessagePayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		now := time.Now()
		seen[payload.ChatID] = now
		times = append(times, now)
		mu.Unlock()
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":1}}`)
	}))
	defer srv.Close()

	client := NewTelegramClient(TelegramConfig{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 20,
		Burst:             1,
	})

	const chats = 5
	var wg sync.WaitGroup
	var delivered atomic.Int32
	for i := 0; i < chats; i++ {
		wg.Add(1)
		go func(chatID string) {
			defer wg.Done()
			if _, err := client.SendMessage(context.Background(), testToken, chatID, "<b>New order</b>"); err == nil {
				delivered.Add(1)
			}
		}(fmt.Sprintf("-100%d", i))
	}
	wg.Wait()

	assert.Equal(t, int32(chats), delivered.Load())
	require.Len(t, seen, chats)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	// one token up front, then one every 50ms
	assert.GreaterOrEqual(t, times[chats-1].Sub(times[0]), 150*time.Millisecond)
}

func TestTelegramClient_RateLimitWaitHonoursCancellation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":1}}`)
	}))
	defer srv.Close()

	client := NewTelegramClient(TelegramConfig{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 0.5,
		Burst:             1,
	})

	_, err := client.SendMessage(context.Background(), testToken, "-1001", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.SendMessage(ctx, testToken, "-1002", "second")

	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "a send waiting for a token must not reach the API")
}
