package notifier

import (
	"context"
	"log/slog"
)

// NoopClient stands in for the Telegram client when notifications are
// disabled. Messages are dropped and reported as delivered so callers do not
// retry them.
type NoopClient struct{}

// NewNoopClient creates a new NoopClient instance.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// Send drops the message.
func (n *NoopClient) Send(ctx context.Context, credential, chatID, text string) bool {
	slog.Debug("notifications disabled, message dropped",
		slog.String("chat_id", chatID),
		slog.Int("length", len(text)))
	return true
}

// GetMe reports an empty bot so connection tests pass while disabled.
func (n *NoopClient) GetMe(ctx context.Context, credential string) (*BotInfo, error) {
	return &BotInfo{}, nil
}
