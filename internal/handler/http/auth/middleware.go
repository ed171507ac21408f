package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
	authservice "perfumery-notify/internal/service/auth"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

// IdentityFromContext returns the identity stored by Authz.
func IdentityFromContext(ctx context.Context) (authservice.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(authservice.Identity)
	return id, ok
}

// Authz requires a valid bearer token on every non-public endpoint and
// checks the token's role against RolePermissions.
func Authz(svc *authservice.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc.IsPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			id, err := verifyBearer(svc, r.Header.Get("Authorization"))
			if err != nil {
				respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
				return
			}
			allowed := checkRolePermission(id.Role, r.Method, r.URL.Path)
			RecordAuthzCheckDuration(time.Since(start).Seconds())
			if !allowed {
				RecordForbiddenAttempt(id.Role, r.Method)
				slog.Warn("forbidden request",
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.String("subject", id.Subject),
					slog.String("role", id.Role),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyBearer(svc *authservice.AuthService, header string) (authservice.Identity, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return authservice.Identity{}, errors.New("missing bearer token")
	}
	return svc.Verify(strings.TrimPrefix(header, prefix))
}
