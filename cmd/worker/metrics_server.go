package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perfumery-notify/internal/resilience/circuitbreaker"
)

type breakerSource interface {
	Health() []circuitbreaker.BreakerStatus
}

// ChannelHealthResponse reports the per-chat breakers of the fan-out.
type ChannelHealthResponse struct {
	Healthy  bool                           `json:"healthy"`
	Channels []circuitbreaker.BreakerStatus `json:"channels"`
}

// startMetricsServer serves /metrics, /health and /health/channels on port
// until ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, breakers breakerSource) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           metricsMux(breakers),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}

func metricsMux(breakers breakerSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/health/channels", channelHealthHandler(breakers))
	return mux
}

// channelHealthHandler answers 503 while any chat's breaker is open.
func channelHealthHandler(breakers breakerSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		statuses := breakers.Health()
		healthy := true
		for _, b := range statuses {
			if b.State == "open" {
				healthy = false
			}
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		if statuses == nil {
			statuses = []circuitbreaker.BreakerStatus{}
		}
		writeJSON(w, code, ChannelHealthResponse{Healthy: healthy, Channels: statuses})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
