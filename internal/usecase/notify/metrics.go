package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification delivery
var (
	// notificationDispatchedTotal tracks deliveries started per recipient
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatched_total",
			Help: "Total number of per-recipient deliveries started",
		},
		[]string{"chat"},
	)

	// notificationSentTotal tracks per-recipient results
	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Total number of per-recipient delivery results",
		},
		[]string{"chat", "status"}, // status: success|failure
	)

	// notificationDuration tracks per-recipient delivery duration, inner retries included
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Per-recipient delivery duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"chat"},
	)

	// circuitBreakerOpenTotal tracks breaker trips per recipient
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"chat"},
	)

	// notificationDroppedTotal tracks deliveries that ended without an outcome
	notificationDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dropped_total",
			Help: "Total number of dropped per-recipient deliveries",
		},
		[]string{"chat", "reason"}, // reason: panic
	)

	// openBreakerSendsTotal tracks sends made past an open recipient breaker
	openBreakerSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_open_breaker_sends_total",
			Help: "Total number of deliveries attempted while the recipient breaker was open",
		},
		[]string{"chat", "result"}, // result: delivered|failed
	)

	// activeNotifications tracks in-flight per-recipient goroutines
	activeNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_active_goroutines",
			Help: "Number of active notification goroutines",
		},
	)

	// recipientsResolved tracks the size of the last resolved recipient list
	recipientsResolved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_recipients_resolved",
			Help: "Number of recipients in the last resolved list",
		},
	)

	// fanoutTotal tracks whole fan-out results
	fanoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_fanout_total",
			Help: "Total number of fan-outs by result",
		},
		[]string{"result"}, // result: delivered|failed|no_recipients
	)

	// guaranteedAttempts tracks how many cycles a guaranteed send needed
	guaranteedAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_guaranteed_attempts",
			Help:    "Attempts used by guaranteed sends",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
		[]string{"result"}, // result: success|failure
	)
)

// RecordDispatch records that delivery to a recipient started.
func RecordDispatch(chat string) {
	notificationDispatchedTotal.WithLabelValues(chat).Inc()
}

// RecordSuccess records a delivered message and how long it took.
func RecordSuccess(chat string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(chat, "success").Inc()
	notificationDuration.WithLabelValues(chat).Observe(duration.Seconds())
}

// RecordFailure records a failed delivery and how long it took.
func RecordFailure(chat string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(chat, "failure").Inc()
	notificationDuration.WithLabelValues(chat).Observe(duration.Seconds())
}

// RecordDropped records a delivery that ended without an outcome.
//
// Parameters:
//   - chat: The recipient chat id
//   - reason: The reason for dropping (panic)
func RecordDropped(chat string, reason string) {
	notificationDroppedTotal.WithLabelValues(chat, reason).Inc()
}

// RecordOpenBreakerSend records a send made while the chat's breaker was open.
func RecordOpenBreakerSend(chat string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	openBreakerSendsTotal.WithLabelValues(chat, result).Inc()
}

// RecordCircuitBreakerOpen records a breaker trip for a recipient.
func RecordCircuitBreakerOpen(chat string) {
	circuitBreakerOpenTotal.WithLabelValues(chat).Inc()
}

// IncrementActiveGoroutines increments the active goroutines gauge by 1.
func IncrementActiveGoroutines() {
	activeNotifications.Inc()
}

// DecrementActiveGoroutines decrements the active goroutines gauge by 1.
func DecrementActiveGoroutines() {
	activeNotifications.Dec()
}

// SetRecipientsResolved sets the size of the last resolved recipient list.
func SetRecipientsResolved(count float64) {
	recipientsResolved.Set(count)
}

// RecordFanout records the result of one fan-out.
func RecordFanout(result string) {
	fanoutTotal.WithLabelValues(result).Inc()
}

// RecordGuaranteed records how many attempts a guaranteed send used.
func RecordGuaranteed(success bool, attempts int) {
	result := "failure"
	if success {
		result = "success"
	}
	guaranteedAttempts.WithLabelValues(result).Observe(float64(attempts))
}
