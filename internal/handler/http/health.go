// Package http holds the HTTP surface of the api binary: shared middleware,
// health and metrics endpoints. Resource handlers live in subpackages.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"perfumery-notify/internal/resilience/circuitbreaker"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"` // healthy, degraded, unhealthy or disabled
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler reports database and delivery-channel health.
//
// A nil DB means the api runs on a static settings file; the check is then
// reported as disabled. Open per-chat breakers degrade the telegram check
// but never make the service unhealthy: other chats still receive messages.
type HealthHandler struct {
	DB       *sql.DB
	Breakers func() []circuitbreaker.BreakerStatus
	Version  string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	healthy := true

	if h.DB != nil {
		db := h.checkDatabase(ctx)
		checks["database"] = db
		if db.Status == "unhealthy" {
			healthy = false
		}
	} else {
		checks["database"] = CheckStatus{Status: "disabled", Message: "static settings file in use"}
	}

	if h.Breakers != nil {
		checks["telegram"] = checkChannels(h.Breakers())
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
	if err != nil {
		slog.Error("health: failed to encode response", slog.Any("error", err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: "unhealthy", Message: "database unreachable"}
	}

	stats := h.DB.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}

	// MaxOpenConnections is 0 when the pool is unbounded.
	if stats.MaxOpenConnections == 0 {
		return CheckStatus{Status: "degraded", Message: "connection pool max connections not configured", Details: details}
	}
	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= 80.0 {
		return CheckStatus{Status: "degraded", Message: "connection pool utilization above 80%", Details: details}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

func checkChannels(breakers []circuitbreaker.BreakerStatus) CheckStatus {
	open := 0
	states := make(map[string]any, len(breakers))
	for _, b := range breakers {
		states[b.Key] = b.State
		if b.State == "open" {
			open++
		}
	}
	if open > 0 {
		return CheckStatus{Status: "degraded", Message: "some chats are failing", Details: states}
	}
	return CheckStatus{Status: "healthy", Details: states}
}

// ReadyHandler answers readiness checks. Without a database the api is
// ready as soon as it listens.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
	}
	writePlain(w, "ready")
}

// LiveHandler answers liveness checks.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writePlain(w, "alive")
}

func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("health: failed to write response", slog.Any("error", err))
	}
}
