package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"perfumery-notify/internal/observability/tracing"
	"perfumery-notify/internal/resilience/retry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// TelegramConfig contains configuration for the Telegram Bot API client.
type TelegramConfig struct {
	// BaseURL is the Bot API root, without the /bot<token> part.
	BaseURL string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// RequestsPerSecond and Burst size the client-wide token bucket.
	RequestsPerSecond float64
	Burst             int

	// Policy is the retry policy applied to each sendMessage call.
	Policy retry.Policy
}

// DefaultTelegramConfig returns the production defaults: 10s per attempt,
// 4 attempts with linear backoff, and 25 requests per second which stays
// under the Bot API's global limit.
func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 25,
		Burst:             5,
		Policy:            retry.TelegramSendPolicy(),
	}
}

// MaxSendDuration is the worst case of one SendMessage call: every attempt
// hits the timeout and every wait is a capped retry_after.
func (c TelegramConfig) MaxSendDuration() time.Duration {
	return c.Policy.MaxElapsed(c.Timeout)
}

// MaxSendDuration reports the worst case of one SendMessage call with the
// client's effective configuration.
func (c *TelegramClient) MaxSendDuration() time.Duration {
	return c.config.MaxSendDuration()
}

// TelegramClient delivers messages through the Telegram Bot API.
type TelegramClient struct {
	config      TelegramConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	tracer      trace.Tracer
}

// NewTelegramClient creates a client. Zero fields in cfg take their
// defaults from DefaultTelegramConfig.
func NewTelegramClient(cfg TelegramConfig) *TelegramClient {
	def := DefaultTelegramConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = def.Policy
	}
	cfg.Policy.Retryable = retryableError

	return &TelegramClient{
		config: cfg,
		// Per-attempt deadlines come from the request context.
		httpClient:  &http.Client{},
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		tracer:      tracing.GetTracer(),
	}
}

type sendMessagePayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the Bot API response envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`

	header http.Header
}

// SendResult describes a finished sendMessage call.
type SendResult struct {
	RequestID string
	Attempts  int
	Outcome   Outcome
	MessageID int64
}

// BotInfo is the getMe result.
type BotInfo struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Send delivers text to chatID and reports whether the provider accepted it.
// Empty arguments return false without a network call.
func (c *TelegramClient) Send(ctx context.Context, credential, chatID, text string) bool {
	_, err := c.SendMessage(ctx, credential, chatID, text)
	return err == nil
}

// SendMessage delivers text to chatID, retrying transient failures per the
// configured policy. Fatal outcomes stop after the attempt that produced
// them. The returned error is an *APIError unless the context ended first.
func (c *TelegramClient) SendMessage(ctx context.Context, credential, chatID, text string) (SendResult, error) {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	res := SendResult{RequestID: requestID}

	if credential == "" || chatID == "" || text == "" {
		res.Outcome = Outcome{Kind: OutcomeFatal, Reason: ReasonInvalidArgument, Description: "credential, chat id and text are required"}
		RecordSend(res.Outcome)
		return res, &APIError{Outcome: res.Outcome}
	}

	logger := slog.With(
		slog.String("request_id", requestID),
		slog.String("chat_id", chatID))

	attempts, err := c.config.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		res.Outcome, res.MessageID = c.sendOnce(ctx, credential, chatID, text, attempt)
		if res.Outcome.Kind == OutcomeSuccess {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Outcome: res.Outcome}
	})
	res.Attempts = attempts
	RecordSend(res.Outcome)

	if err == nil {
		logger.Info("telegram message delivered",
			slog.Int("attempt", attempts),
			slog.Int64("message_id", res.MessageID))
		return res, nil
	}

	attrs := []any{
		slog.Int("attempts", attempts),
		slog.String("outcome", res.Outcome.Kind.String()),
		slog.String("reason", res.Outcome.Reason),
		slog.Any("error", err),
	}
	if h := res.Outcome.hint(); h != "" {
		attrs = append(attrs, slog.String("hint", h))
	}
	logger.Error("telegram message delivery failed", attrs...)

	if ctxErr := ctx.Err(); ctxErr != nil && !IsFatal(err) {
		return res, fmt.Errorf("telegram send aborted: %w", ctxErr)
	}
	return res, &APIError{Outcome: res.Outcome}
}

// sendOnce performs a single attempt bounded by the per-attempt timeout.
func (c *TelegramClient) sendOnce(ctx context.Context, credential, chatID, text string, attempt int) (Outcome, int64) {
	ctx, span := c.tracer.Start(ctx, "telegram.sendMessage",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("telegram.chat_id", chatID),
			attribute.Int("telegram.attempt", attempt),
		))
	defer span.End()

	start := time.Now()
	outcome, msgID := c.doSend(ctx, credential, chatID, text)
	ObserveAttempt(outcome, time.Since(start))

	span.SetAttributes(
		attribute.String("telegram.outcome", outcome.Kind.String()),
		attribute.String("telegram.reason", outcome.Reason),
		attribute.Int("http.status_code", outcome.StatusCode))
	if outcome.Kind != OutcomeSuccess {
		span.SetStatus(codes.Error, outcome.Reason)
	}

	slog.Debug("telegram attempt finished",
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("chat_id", chatID),
		slog.Int("attempt", attempt),
		slog.String("outcome", outcome.Kind.String()),
		slog.String("reason", outcome.Reason),
		slog.Int("status", outcome.StatusCode))

	return outcome, msgID
}

func (c *TelegramClient) doSend(ctx context.Context, credential, chatID, text string) (Outcome, int64) {
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return Classify(0, nil, err), 0
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	payload := sendMessagePayload{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Reason: ReasonInvalidArgument, Description: err.Error()}, 0
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.methodURL(credential, "sendMessage"), bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Reason: ReasonInvalidArgument, Description: maskToken(err.Error(), credential)}, 0
	}
	req.Header.Set("Content-Type", "application/json")

	status, apiResp, err := c.do(req, credential)
	out := Classify(status, apiResp, err)
	if out.Kind == OutcomeTransient && out.Reason == ReasonRateLimited && out.RetryAfter == 0 {
		out.RetryAfter = retryAfterHeader(apiResp)
	}

	var msgID int64
	if out.Kind == OutcomeSuccess && apiResp != nil {
		var msg struct {
			MessageID int64 `json:"message_id"`
		}
		if json.Unmarshal(apiResp.Result, &msg) == nil {
			msgID = msg.MessageID
		}
	}
	return out, msgID
}

// GetMe validates a credential by calling getMe once, without retries.
func (c *TelegramClient) GetMe(ctx context.Context, credential string) (*BotInfo, error) {
	if credential == "" {
		return nil, &APIError{Outcome: Outcome{Kind: OutcomeFatal, Reason: ReasonInvalidArgument, Description: "credential is required"}}
	}

	ctx, span := c.tracer.Start(ctx, "telegram.getMe", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL(credential, "getMe"), nil)
	if err != nil {
		return nil, fmt.Errorf("create getMe request: %s", maskToken(err.Error(), credential))
	}

	status, apiResp, err := c.do(req, credential)
	out := Classify(status, apiResp, err)
	if out.Kind != OutcomeSuccess {
		span.SetStatus(codes.Error, out.Reason)
		return nil, &APIError{Outcome: out}
	}

	var info BotInfo
	if err := json.Unmarshal(apiResp.Result, &info); err != nil {
		return nil, fmt.Errorf("decode getMe result: %w", err)
	}
	span.SetAttributes(attribute.String("telegram.bot_username", info.Username))
	return &info, nil
}

// do executes req and decodes the envelope. Transport errors are returned
// with the credential masked, since the request URL embeds it.
func (c *TelegramClient) do(req *http.Request, credential string) (int, *apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &maskedError{msg: maskToken(err.Error(), credential), err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, &maskedError{msg: maskToken(err.Error(), credential), err: err}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		// Proxies return HTML error pages; keep the status and a short body.
		apiResp = apiResponse{Description: strings.TrimSpace(truncate(string(raw), 200))}
	}
	apiResp.header = resp.Header
	return resp.StatusCode, &apiResp, nil
}

func (c *TelegramClient) methodURL(credential, method string) string {
	return c.config.BaseURL + "/bot" + credential + "/" + method
}

// retryAfterHeader falls back to the Retry-After header when the body has no
// retry_after parameter.
func retryAfterHeader(resp *apiResponse) time.Duration {
	if resp == nil || resp.header == nil {
		return 0
	}
	if v := resp.header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// maskedError keeps the original error for errors.Is while hiding the token
// in its message.
type maskedError struct {
	msg string
	err error
}

func (e *maskedError) Error() string { return e.msg }
func (e *maskedError) Unwrap() error { return e.err }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
