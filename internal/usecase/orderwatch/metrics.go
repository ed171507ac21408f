package orderwatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ordersObserved counts feed events by what the guard did with them.
	ordersObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderwatch_orders_total",
			Help: "Orders observed on the feed by handling result",
		},
		[]string{"result"}, // notified|undelivered|stale|not_pending|duplicate|failed
	)

	// feedErrors counts feed errors; permission errors are expected.
	feedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderwatch_feed_errors_total",
			Help: "Order feed errors by kind",
		},
		[]string{"kind"}, // permission|other
	)

	// watching is 1 while a subscription is held.
	watching = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderwatch_active",
			Help: "Whether the order watcher currently holds a subscription",
		},
	)
)

func recordOrder(result string) {
	ordersObserved.WithLabelValues(result).Inc()
}

func recordFeedError(kind string) {
	feedErrors.WithLabelValues(kind).Inc()
}
