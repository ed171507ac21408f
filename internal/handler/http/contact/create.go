package contact

import (
	"encoding/json"
	"errors"
	"net/http"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
	contactUC "perfumery-notify/internal/usecase/contact"
	"perfumery-notify/internal/usecase/notify"
)

// CreateHandler stores a contact form submission. The response does not
// wait for the Telegram notification.
type CreateHandler struct{ Svc contactUC.Service }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	ctx := notify.WithRequestID(r.Context(), requestid.FromContext(r.Context()))
	msg, err := h.Svc.Submit(ctx, contactUC.SubmitInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		if errors.Is(err, entity.ErrValidationFailed) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, DTO{ID: msg.ID, CreatedAt: msg.CreatedAt})
}
