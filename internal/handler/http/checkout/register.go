package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	orderUC "perfumery-notify/internal/usecase/order"
)

// Register mounts the public checkout endpoint behind limit (nil for none).
func Register(r chi.Router, svc orderUC.Service, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Method(http.MethodPost, "/checkout", PlaceHandler{svc})
	})
}
