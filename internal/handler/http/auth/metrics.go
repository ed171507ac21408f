package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authRequests counts operator logins by role and result.
	authRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_auth_requests_total",
			Help: "Operator login attempts by role and result",
		},
		[]string{"role", "result"}, // result: success | failure
	)

	authDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_auth_duration_seconds",
			Help:    "Operator login duration by role",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"role"},
	)

	authzCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "api_authz_check_duration_seconds",
			Help:    "Token verification and role check duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	// forbiddenAttempts counts valid tokens used outside their role.
	forbiddenAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_forbidden_attempts_total",
			Help: "Forbidden requests by role and method",
		},
		[]string{"role", "method"},
	)
)

// RecordAuthRequest records a login attempt.
func RecordAuthRequest(role, result string) {
	authRequests.WithLabelValues(role, result).Inc()
}

// RecordAuthDuration records login duration.
func RecordAuthDuration(role string, durationSeconds float64) {
	authDuration.WithLabelValues(role).Observe(durationSeconds)
}

// RecordAuthzCheckDuration records authorization check duration.
func RecordAuthzCheckDuration(durationSeconds float64) {
	authzCheckDuration.Observe(durationSeconds)
}

// RecordForbiddenAttempt records a forbidden request.
func RecordForbiddenAttempt(role, method string) {
	forbiddenAttempts.WithLabelValues(role, method).Inc()
}
