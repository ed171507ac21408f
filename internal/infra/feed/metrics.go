package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_feed_reconnects_total",
			Help: "Order feed reconnect attempts by driver",
		},
		[]string{"driver"},
	)

	received = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_feed_messages_total",
			Help: "Order feed messages by driver and result",
		},
		[]string{"driver", "result"}, // emitted|malformed
	)
)
