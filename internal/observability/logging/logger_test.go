package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"perfumery-notify/internal/handler/http/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Level: "info", Output: &buf})

	logger.Debug("hidden")
	logger.Info("order placed", slog.String("order_id", "o-1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "order placed", entry["msg"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, "INFO", entry["level"])
	assert.NotContains(t, entry, "source")
}

func TestNewLogger_TextWithSourceAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Level: "debug", Format: "text", Output: &buf})

	logger.Debug("resolving recipients")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="resolving recipients"`)
	assert.Contains(t, out, "source=")
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Output: &buf})

	logger.Warn("login failed",
		slog.String("bot_token", "123456:ABCDEF"),
		slog.String("Password", "hunter2"),
		slog.String("chat_id", "-100200"))

	out := buf.String()
	assert.NotContains(t, out, "123456:ABCDEF")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "-100200")
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := requestid.WithRequestID(context.Background(), "req-7")

	WithRequestID(ctx, base).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-7", entry["request_id"])
}

func TestWithRequestID_EmptyRequestID(t *testing.T) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	assert.Same(t, base, WithRequestID(context.Background(), base))
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
}
