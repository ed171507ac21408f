package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
	authservice "perfumery-notify/internal/service/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenHandler exchanges operator credentials for a session token.
func TokenHandler(svc *authservice.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := slog.With(slog.String("request_id", requestid.FromContext(r.Context())))

		fail := func(code int, reason, role string) {
			logger.Warn("authentication failed",
				slog.String("reason", reason),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest(role, "failure")
			RecordAuthDuration(role, time.Since(start).Seconds())
			http.Error(w, http.StatusText(code), code)
		}

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(http.StatusBadRequest, "invalid_request", "unknown")
			return
		}

		signed, id, err := svc.Login(r.Context(), authservice.Credentials{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			fail(http.StatusUnauthorized, "invalid_credentials", "unknown")
			return
		}

		logger.Info("authentication successful",
			slog.String("user", id.Subject),
			slog.String("role", id.Role),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		RecordAuthRequest(id.Role, "success")
		RecordAuthDuration(id.Role, time.Since(start).Seconds())

		respond.JSON(w, http.StatusOK, tokenResponse{Token: signed, Role: id.Role, ExpiresAt: id.ExpiresAt})
	}
}
