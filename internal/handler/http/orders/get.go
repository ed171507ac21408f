package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/handler/http/respond"
	orderUC "perfumery-notify/internal/usecase/order"
)

type GetHandler struct{ Svc orderUC.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}
