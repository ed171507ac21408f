package telegram

import (
	"net/http"

	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

// RecipientsDTO lists the resolved chat ids with their breaker states.
type RecipientsDTO struct {
	Recipients []string                       `json:"recipients"`
	Breakers   []circuitbreaker.BreakerStatus `json:"breakers"`
}

type RecipientsHandler struct{ Source RecipientSource }

func (h RecipientsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Source.Recipients(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	breakers := h.Source.Health()
	if breakers == nil {
		breakers = []circuitbreaker.BreakerStatus{}
	}
	respond.JSON(w, http.StatusOK, RecipientsDTO{Recipients: ids, Breakers: breakers})
}
