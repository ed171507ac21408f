package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the delivery request id stored by the client.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// OutcomeKind is the closed set of results a provider call can have.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Reasons attached to non-success outcomes.
const (
	ReasonInvalidCredential  = "invalid_credential"
	ReasonInvalidRecipient   = "invalid_recipient"
	ReasonBlocked            = "blocked_by_recipient"
	ReasonRateLimited        = "rate_limited"
	ReasonServerError        = "server_error"
	ReasonTimeout            = "timeout"
	ReasonNetwork            = "network_error"
	ReasonUnexpectedResponse = "unexpected_response"
	ReasonInvalidArgument    = "invalid_argument"
)

// Outcome is the classified result of one provider call.
type Outcome struct {
	Kind        OutcomeKind
	Reason      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

// Retryable reports whether another attempt might succeed.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeTransient
}

// hint is an operator-facing suggestion logged next to fatal outcomes.
func (o Outcome) hint() string {
	switch o.Reason {
	case ReasonInvalidCredential:
		return "check the bot token in notification settings"
	case ReasonInvalidRecipient:
		return "check the chat id; the bot must be added to the chat"
	case ReasonBlocked:
		return "the bot was blocked or removed from the chat"
	default:
		return ""
	}
}

// APIError carries a non-success Outcome as an error.
type APIError struct {
	Outcome Outcome
}

func (e *APIError) Error() string {
	if e.Outcome.StatusCode != 0 {
		return fmt.Sprintf("telegram %s (HTTP %d): %s", e.Outcome.Reason, e.Outcome.StatusCode, e.Outcome.Description)
	}
	return fmt.Sprintf("telegram %s: %s", e.Outcome.Reason, e.Outcome.Description)
}

// RetryAfter exposes the provider's requested wait to the retry policy.
func (e *APIError) RetryAfter() time.Duration {
	return e.Outcome.RetryAfter
}

// IsFatal reports whether err is a provider error that retrying cannot fix.
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Outcome.Kind == OutcomeFatal
}

// retryableError is the retry predicate for the inner send policy: only
// transient provider outcomes are retried.
func retryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Outcome.Retryable()
	}
	return false
}

// Classify maps a provider response, or the transport error that prevented
// one, to an Outcome. resp may be nil when err is set.
func Classify(statusCode int, resp *apiResponse, err error) Outcome {
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Outcome{Kind: OutcomeTransient, Reason: ReasonTimeout, Description: err.Error()}
		}
		return Outcome{Kind: OutcomeTransient, Reason: ReasonNetwork, Description: err.Error()}
	}

	desc := ""
	if resp != nil {
		desc = resp.Description
	}
	out := Outcome{StatusCode: statusCode, Description: desc}

	switch {
	case statusCode >= 200 && statusCode < 300:
		if resp != nil && resp.OK {
			out.Kind = OutcomeSuccess
			return out
		}
		out.Kind, out.Reason = OutcomeFatal, ReasonUnexpectedResponse
		if out.Description == "" {
			out.Description = "response not acknowledged"
		}
	case statusCode == http.StatusUnauthorized:
		out.Kind, out.Reason = OutcomeFatal, ReasonInvalidCredential
	case statusCode == http.StatusBadRequest:
		out.Kind, out.Reason = OutcomeFatal, ReasonInvalidRecipient
	case statusCode == http.StatusForbidden:
		out.Kind, out.Reason = OutcomeFatal, ReasonBlocked
	case statusCode == http.StatusTooManyRequests:
		out.Kind, out.Reason = OutcomeTransient, ReasonRateLimited
		if resp != nil && resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			out.RetryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
	case statusCode == http.StatusInternalServerError,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusServiceUnavailable:
		out.Kind, out.Reason = OutcomeTransient, ReasonServerError
	default:
		out.Kind, out.Reason = OutcomeFatal, ReasonUnexpectedResponse
	}
	return out
}

// maskToken removes every occurrence of token from s.
func maskToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}

// MaskToken shortens a bot token for display, keeping the bot id.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if i := strings.IndexByte(token, ':'); i > 0 {
		return token[:i] + ":***"
	}
	return "***"
}
