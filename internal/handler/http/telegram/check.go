package telegram

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/observability/metrics"
)

// BotDTO is the getMe result shown to operators.
type BotDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
}

// CheckHandler checks the bot token in the body with one getMe call.
type CheckHandler struct{ Bot BotChecker }

func (h CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotToken string `json:"bot_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	token := strings.TrimSpace(req.BotToken)
	if err := entity.ValidateBotToken(token); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	info, err := h.Bot.GetMe(r.Context(), token)
	if err != nil {
		slog.Default().Warn("Bot token check failed",
			slog.String("token", notifier.MaskToken(token)),
			slog.String("error", respond.SanitizeError(err)))
		if notifier.IsFatal(err) {
			metrics.RecordCredentialCheck(metrics.CredentialInvalid)
			respond.SafeError(w, http.StatusBadRequest, errors.New("bot token is invalid or revoked"))
			return
		}
		metrics.RecordCredentialCheck(metrics.CredentialUnavailable)
		respond.JSON(w, http.StatusBadGateway, map[string]string{"error": "telegram is unavailable"})
		return
	}
	metrics.RecordCredentialCheck(metrics.CredentialValid)
	respond.JSON(w, http.StatusOK, BotDTO{ID: info.ID, Username: info.Username, FirstName: info.FirstName})
}
