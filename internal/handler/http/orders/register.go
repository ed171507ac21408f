// Package orders serves the operator endpoints for orders: reading one,
// changing its status and triggering its notifications by hand.
package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	orderUC "perfumery-notify/internal/usecase/order"
)

// Register mounts the order routes. timeout wraps every route except the
// guaranteed notify, whose backoff sequence outlasts any request timeout.
func Register(r chi.Router, svc orderUC.Service, timeout func(http.Handler) http.Handler) {
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Method(http.MethodPost, "/notify", NotifyHandler{svc})

		r.Group(func(r chi.Router) {
			if timeout != nil {
				r.Use(timeout)
			}
			r.Method(http.MethodGet, "/", GetHandler{svc})
			r.Method(http.MethodPost, "/status-notify", StatusNotifyHandler{svc})
			r.Method(http.MethodPatch, "/status", UpdateStatusHandler{svc})
		})
	})
}
