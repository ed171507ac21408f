package orders

import (
	"errors"
	"net/http"

	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/usecase/notify"
	orderUC "perfumery-notify/internal/usecase/order"
)

// writeError maps use case errors to status codes. Notification setup
// errors are operator-facing and shown as is.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrValidationFailed):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.Is(err, orderUC.ErrOrderNotFound):
		respond.SafeError(w, http.StatusNotFound, err)
	case notify.IsConfigurationError(err):
		respond.Error(w, http.StatusConflict, err)
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
