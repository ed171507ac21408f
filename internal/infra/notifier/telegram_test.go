package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"perfumery-notify/internal/resilience/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testToken = "123456:TEST-secret-token"

// newTestClient points a client at srv and replaces real sleeps with a
// recorder so retry tests run instantly.
func newTestClient(srv *httptest.Server, delays *[]time.Duration) *TelegramClient {
	var mu sync.Mutex
	policy := retry.TelegramSendPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return NewTelegramClient(TelegramConfig{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		Policy:            policy,
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestTelegramClient_Send(t *testing.T) {
	t.Run("TC-1: posts HTML message to sendMessage and reports success", func(t *testing.T) {
		var got sendMessagePayload
		var path, contentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			contentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":77}}`)
		}))
		defer srv.Close()

		client := newTestClient(srv, nil)
		res, err := client.SendMessage(context.Background(), testToken, "-100500", "<b>Order #12</b>")

		require.NoError(t, err)
		assert.Equal(t, "/bot"+testToken+"/sendMessage", path)
		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, sendMessagePayload{
			ChatID:                "-100500",
			Text:                  "<b>Order #12</b>",
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}, got)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, int64(77), res.MessageID)
		assert.Equal(t, OutcomeSuccess, res.Outcome.Kind)
		assert.NotEmpty(t, res.RequestID)
	})

	t.Run("TC-2: empty arguments fail without a network call", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusOK, `{"ok":true}`)
		}))
		defer srv.Close()

		client := newTestClient(srv, nil)
		ctx := context.Background()

		assert.False(t, client.Send(ctx, "", "1", "text"))
		assert.False(t, client.Send(ctx, testToken, "", "text"))
		assert.False(t, client.Send(ctx, testToken, "1", ""))
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})

	t.Run("TC-3: 2xx without ok acknowledgement is fatal", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeJSON(w, http.StatusOK, `{"ok":false,"description":"weird"}`)
		}))
		defer srv.Close()

		res, err := newTestClient(srv, nil).SendMessage(context.Background(), testToken, "1", "hi")

		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.Equal(t, ReasonUnexpectedResponse, res.Outcome.Reason)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestTelegramClient_FatalStatusesAreNotRetried(t *testing.T) {
	tests := []struct {
		status int
		body   string
		reason string
	}{
		{status: http.StatusUnauthorized, body: `{"ok":false,"error_code":401,"description":"Unauthorized"}`, reason: ReasonInvalidCredential},
		{status: http.StatusBadRequest, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, reason: ReasonInvalidRecipient},
		{status: http.StatusForbidden, body: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, reason: ReasonBlocked},
		{status: http.StatusNotFound, body: `{"ok":false,"error_code":404,"description":"Not Found"}`, reason: ReasonUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			var delays []time.Duration
			res, err := newTestClient(srv, &delays).SendMessage(context.Background(), testToken, "1", "hi")

			require.Error(t, err)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, OutcomeFatal, apiErr.Outcome.Kind)
			assert.Equal(t, tt.reason, apiErr.Outcome.Reason)
			assert.Equal(t, tt.status, apiErr.Outcome.StatusCode)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Empty(t, delays)
		})
	}
}

func TestTelegramClient_TransientRetriesWithLinearBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			writeJSON(w, http.StatusBadGateway, `<html>bad gateway</html>`)
		case 2:
			writeJSON(w, http.StatusServiceUnavailable, `{"ok":false,"error_code":503,"description":"Service Unavailable"}`)
		default:
			writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":1}}`)
		}
	}))
	defer srv.Close()

	var delays []time.Duration
	client := newTestClient(srv, &delays)

	ok := client.Send(context.Background(), testToken, "1", "hi")

	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestTelegramClient_TransientExhaustsFourAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
	}))
	defer srv.Close()

	var delays []time.Duration
	res, err := newTestClient(srv, &delays).SendMessage(context.Background(), testToken, "1", "hi")

	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}, delays)
	assert.Equal(t, ReasonServerError, res.Outcome.Reason)
}

func TestTelegramClient_RateLimitHonoursRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusTooManyRequests,
				`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":2}}`)
	}))
	defer srv.Close()

	var delays []time.Duration
	ok := newTestClient(srv, &delays).Send(context.Background(), testToken, "1", "hi")

	assert.True(t, ok)
	assert.Equal(t, []time.Duration{7 * time.Second}, delays)
}

func TestTelegramClient_PerAttemptTimeoutIsTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	policy := retry.TelegramSendPolicy()
	policy.MaxAttempts = 2
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	client := NewTelegramClient(TelegramConfig{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
		Policy:  policy,
	})

	res, err := client.SendMessage(context.Background(), testToken, "1", "hi")

	require.Error(t, err)
	assert.Equal(t, ReasonTimeout, res.Outcome.Reason)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTelegramClient_NetworkErrorMasksToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	policy := retry.TelegramSendPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	client := NewTelegramClient(TelegramConfig{BaseURL: url, Policy: policy})

	res, err := client.SendMessage(context.Background(), testToken, "1", "hi")

	require.Error(t, err)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, ReasonNetwork, res.Outcome.Reason)
	assert.NotContains(t, err.Error(), testToken)
	assert.NotContains(t, res.Outcome.Description, testToken)
}

func TestTelegramClient_CanceledContextStopsRetrying(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, `{"ok":false}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.TelegramSendPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	client := NewTelegramClient(TelegramConfig{BaseURL: srv.URL, Policy: policy})

	_, err := client.SendMessage(ctx, testToken, "1", "hi")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTelegramClient_GetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/getMe") {
			writeJSON(w, http.StatusNotFound, `{"ok":false}`)
			return
		}
		if strings.Contains(r.URL.Path, testToken) {
			writeJSON(w, http.StatusOK, `{"ok":true,"result":{"id":123456,"is_bot":true,"first_name":"Shop","username":"shop_orders_bot"}}`)
			return
		}
		writeJSON(w, http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)

	info, err := client.GetMe(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, &BotInfo{ID: 123456, IsBot: true, FirstName: "Shop", Username: "shop_orders_bot"}, info)

	_, err = client.GetMe(context.Background(), "999:wrong")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ReasonInvalidCredential, apiErr.Outcome.Reason)

	_, err = client.GetMe(context.Background(), "")
	assert.Error(t, err)
}

func TestTelegramClient_RecordsSpanPerAttempt(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusBadGateway, `{"ok":false}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":5}}`)
	}))
	defer srv.Close()

	require.True(t, newTestClient(srv, nil).Send(context.Background(), testToken, "42", "hi"))
	_ = tp.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "telegram.sendMessage", s.Name)
	}
}

func TestClassify(t *testing.T) {
	ok := &apiResponse{OK: true}
	notOK := &apiResponse{OK: false, Description: "x"}
	limited := &apiResponse{Parameters: &struct {
		RetryAfter int `json:"retry_after,omitempty"`
	}{RetryAfter: 4}}

	tests := []struct {
		name       string
		status     int
		resp       *apiResponse
		err        error
		kind       OutcomeKind
		reason     string
		retryAfter time.Duration
	}{
		{name: "200 ok", status: 200, resp: ok, kind: OutcomeSuccess},
		{name: "200 not ok", status: 200, resp: notOK, kind: OutcomeFatal, reason: ReasonUnexpectedResponse},
		{name: "401", status: 401, resp: notOK, kind: OutcomeFatal, reason: ReasonInvalidCredential},
		{name: "400", status: 400, resp: notOK, kind: OutcomeFatal, reason: ReasonInvalidRecipient},
		{name: "403", status: 403, resp: notOK, kind: OutcomeFatal, reason: ReasonBlocked},
		{name: "429", status: 429, resp: limited, kind: OutcomeTransient, reason: ReasonRateLimited, retryAfter: 4 * time.Second},
		{name: "500", status: 500, resp: notOK, kind: OutcomeTransient, reason: ReasonServerError},
		{name: "502", status: 502, resp: nil, kind: OutcomeTransient, reason: ReasonServerError},
		{name: "503", status: 503, resp: notOK, kind: OutcomeTransient, reason: ReasonServerError},
		{name: "504", status: 504, resp: nil, kind: OutcomeFatal, reason: ReasonUnexpectedResponse},
		{name: "409", status: 409, resp: notOK, kind: OutcomeFatal, reason: ReasonUnexpectedResponse},
		{name: "deadline", err: context.DeadlineExceeded, kind: OutcomeTransient, reason: ReasonTimeout},
		{name: "refused", err: errors.New("dial tcp: connection refused"), kind: OutcomeTransient, reason: ReasonNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.resp, tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.retryAfter, got.RetryAfter)
		})
	}
}

func TestTelegramConfig_MaxSendDuration(t *testing.T) {
	assert.Equal(t, 130*time.Second, DefaultTelegramConfig().MaxSendDuration())

	c := NewTelegramClient(TelegramConfig{Timeout: 2 * time.Second})
	assert.Equal(t, 4*2*time.Second+3*30*time.Second, c.MaxSendDuration())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "123456:***", MaskToken(testToken))
	assert.Equal(t, "***", MaskToken("garbage"))
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "GET /bot<redacted>/getMe", maskToken("GET /bot"+testToken+"/getMe", testToken))
}

func TestNoopClient(t *testing.T) {
	var c Client = NewNoopClient()
	assert.True(t, c.Send(context.Background(), "", "1", "dropped"))
	info, err := c.GetMe(context.Background(), "")
	assert.NoError(t, err)
	assert.NotNil(t, info)
}
