// Package telegram serves the operator endpoints for the Telegram channel:
// checking a bot token and listing who would receive notifications.
package telegram

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

// BotChecker validates a bot credential against the provider.
type BotChecker interface {
	GetMe(ctx context.Context, credential string) (*notifier.BotInfo, error)
}

// RecipientSource exposes the resolved recipients and their breaker states.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]string, error)
	Health() []circuitbreaker.BreakerStatus
}

func Register(r chi.Router, bot BotChecker, recipients RecipientSource) {
	r.Method(http.MethodPost, "/telegram/test", CheckHandler{Bot: bot})
	r.Method(http.MethodGet, "/telegram/recipients", RecipientsHandler{Source: recipients})
}
