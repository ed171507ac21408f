package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/usecase/notify"
	orderUC "perfumery-notify/internal/usecase/order"
)

// UpdateStatusHandler changes an order's status. The status-change
// notification goes out in the background.
type UpdateStatusHandler struct{ Svc orderUC.Service }

func (h UpdateStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status entity.OrderStatus `json:"status"`
		Note   string             `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	ctx := notify.WithRequestID(r.Context(), requestid.FromContext(r.Context()))
	o, err := h.Svc.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}
