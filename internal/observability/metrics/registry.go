// Package metrics provides centralized Prometheus metrics for the shop.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics track storefront activity
var (
	// OrdersPlacedTotal counts orders accepted through checkout
	OrdersPlacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders accepted at checkout",
		},
	)

	// OrderValueTotal sums the totals of accepted orders
	OrderValueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_order_value_total",
			Help: "Sum of accepted order totals in the shop currency",
		},
	)

	// OrderStatusChangesTotal counts status transitions by target status
	OrderStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_order_status_changes_total",
			Help: "Total number of order status changes",
		},
		[]string{"status"},
	)

	// ContactMessagesTotal counts contact form submissions by result
	ContactMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_contact_messages_total",
			Help: "Total number of contact form submissions",
		},
		[]string{"result"}, // result: accepted, rejected, error
	)

	// BotCredentialChecksTotal counts bot token checks by result
	BotCredentialChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_credential_checks_total",
			Help: "Total number of bot credential checks",
		},
		[]string{"result"}, // result: valid, invalid, unavailable
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBQueryErrors counts failed database statements
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of failed database statements",
		},
		[]string{"operation"},
	)
)

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordQuery records a statement's duration under the label derived from
// its leading SQL keyword.
func RecordQuery(query string, duration time.Duration, err error) {
	op := QueryOperation(query)
	RecordOperationDuration(op, duration)
	if err != nil {
		DBQueryErrors.WithLabelValues(op).Inc()
	}
}

// QueryOperation returns the lower-cased leading keyword of a SQL
// statement, or "other" for anything unrecognised.
func QueryOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "other"
	}
	switch kw := strings.ToLower(fields[0]); kw {
	case "select", "insert", "update", "delete", "with":
		return kw
	default:
		return "other"
	}
}
