package orders

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/usecase/compose"
	"perfumery-notify/internal/usecase/notify"
	orderUC "perfumery-notify/internal/usecase/order"
)

// ResultDTO reports a notification attempt.
type ResultDTO struct {
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NotifyHandler sends the new-order message with the guaranteed-send
// policy. The optional body {"maxRetries": n} caps the cycles.
// Undelivered results are answered with 502, incomplete notification
// settings with 409, both with the same body shape.
type NotifyHandler struct{ Svc orderUC.Service }

func (h NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxRetries int `json:"maxRetries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.MaxRetries < 0 || req.MaxRetries > 10 {
		respond.SafeError(w, http.StatusBadRequest, &entity.ValidationError{Field: "maxRetries", Message: "must be between 0 and 10"})
		return
	}

	ctx := notify.WithRequestID(r.Context(), requestid.FromContext(r.Context()))
	res, err := h.Svc.Notify(ctx, chi.URLParam(r, "id"), req.MaxRetries)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := ResultDTO{Success: res.Success, Attempts: res.Attempts}
	if res.Err != nil {
		dto.Error = respond.SanitizeError(res.Err)
	}
	code := http.StatusOK
	switch {
	case res.Success:
	case notify.IsConfigurationError(res.Err):
		code = http.StatusConflict
	default:
		code = http.StatusBadGateway
	}
	respond.JSON(w, code, dto)
}

// StatusNotifyHandler sends the short status-change message for the
// transition in the body without changing the stored order.
type StatusNotifyHandler struct{ Svc orderUC.Service }

func (h StatusNotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var tr compose.Transition
	if err := json.NewDecoder(r.Body).Decode(&tr); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	ctx := notify.WithRequestID(r.Context(), requestid.FromContext(r.Context()))
	delivered, err := h.Svc.NotifyStatus(ctx, chi.URLParam(r, "id"), tr)
	if err != nil {
		writeError(w, err)
		return
	}
	if !delivered {
		respond.JSON(w, http.StatusBadGateway, ResultDTO{Success: false, Error: notify.ErrDeliveryFailed.Error()})
		return
	}
	respond.JSON(w, http.StatusOK, ResultDTO{Success: true})
}
