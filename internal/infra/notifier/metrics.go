package notifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// telegramAttemptsTotal counts individual HTTP attempts by outcome.
	telegramAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_api_attempts_total",
			Help: "Total number of Telegram Bot API attempts",
		},
		[]string{"outcome", "reason"},
	)

	// telegramAttemptDuration measures a single HTTP attempt.
	telegramAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telegram_api_attempt_duration_seconds",
			Help:    "Telegram Bot API attempt duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	// telegramSendsTotal counts finished sendMessage calls after retries.
	telegramSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_messages_total",
			Help: "Total number of Telegram sendMessage calls by final outcome",
		},
		[]string{"outcome", "reason"},
	)
)

// ObserveAttempt records one HTTP attempt.
func ObserveAttempt(o Outcome, d time.Duration) {
	telegramAttemptsTotal.WithLabelValues(o.Kind.String(), o.Reason).Inc()
	telegramAttemptDuration.WithLabelValues(o.Kind.String()).Observe(d.Seconds())
}

// RecordSend records the final outcome of a sendMessage call.
func RecordSend(o Outcome) {
	telegramSendsTotal.WithLabelValues(o.Kind.String(), o.Reason).Inc()
}
