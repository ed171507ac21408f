// Package notifier delivers operator notifications through the Telegram Bot
// API.
//
// TelegramClient performs one sendMessage per (credential, chat, text) with a
// per-attempt timeout and bounded retries. Every provider response is mapped
// by Classify to one of three outcomes: success, transient (retried) or fatal
// (returned at once). NoopClient replaces it when notifications are disabled.
package notifier

import (
	"context"
)

// Client is implemented by TelegramClient and NoopClient.
type Client interface {
	// Send delivers text to chatID and reports whether the provider
	// confirmed it. It never panics and never returns early on a transient
	// failure while attempts remain.
	Send(ctx context.Context, credential, chatID, text string) bool

	// GetMe checks that credential belongs to a live bot.
	GetMe(ctx context.Context, credential string) (*BotInfo, error)
}

var (
	_ Client = (*TelegramClient)(nil)
	_ Client = (*NoopClient)(nil)
)
