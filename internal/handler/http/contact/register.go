package contact

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	contactUC "perfumery-notify/internal/usecase/contact"
)

// Register mounts the public contact form endpoint. limit wraps it with the
// per-IP submission limiter; nil leaves it unlimited.
func Register(r chi.Router, svc contactUC.Service, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Method(http.MethodPost, "/contact-messages", CreateHandler{svc})
	})
}
