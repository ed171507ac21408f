// Package notify delivers operator notifications about orders and contact
// messages to every configured Telegram recipient.
//
// The pieces compose bottom-up: a Resolver turns stored settings into a
// credential and a recipient list, Fanout sends one message to all recipients
// concurrently, Service ties composing and delivery together, and
// SendWithGuarantee repeats a whole cycle until at least one recipient gets it.
package notify

import (
	"context"

	"perfumery-notify/internal/infra/notifier"
)

// Sender delivers one message to one chat.
//
// Implementations retry transient failures internally and report the final
// result as a bool; they must be safe for concurrent use and must respect
// context cancellation. The credential must never appear in logs or errors.
type Sender interface {
	Send(ctx context.Context, credential, chatID, text string) bool
}

// OutcomeSender is a Sender that also explains a failed delivery. Fanout
// uses the outcome to keep fatal failures out of the recipient breakers.
type OutcomeSender interface {
	Sender
	SendMessage(ctx context.Context, credential, chatID, text string) (notifier.SendResult, error)
}

var (
	_ OutcomeSender = (*notifier.TelegramClient)(nil)
	_ Sender        = (*notifier.NoopClient)(nil)
)
