// Package slo tracks the service level objectives of new-order
// notifications: how many fresh orders reach at least one operator and how
// long that takes from checkout.
package slo

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DeliverySLO is the target share of announced orders that reach at
	// least one recipient.
	DeliverySLO = 0.99

	// LatencyP95SLO is the target p95 from order creation to delivery.
	LatencyP95SLO = 30 * time.Second

	// DefaultWindow is the rolling window the gauges are computed over.
	DefaultWindow = time.Hour
)

var (
	// SLODeliveryRatio is delivered / attempted over the window.
	SLODeliveryRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_order_delivery_ratio",
			Help: "Share of new-order notifications delivered over the SLO window, target: 0.99",
		},
	)

	// SLOLatencyP95 is the p95 creation-to-delivery latency of delivered
	// notifications over the window.
	SLOLatencyP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_order_notify_latency_p95_seconds",
			Help: "p95 seconds from order creation to delivered notification, target: 30",
		},
	)

	// SLOBudgetBurn is the error budget consumed over the window, where 1
	// means the budget is exhausted.
	SLOBudgetBurn = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_order_delivery_budget_burn_ratio",
			Help: "Fraction of the delivery error budget spent over the SLO window",
		},
	)
)

type sample struct {
	at        time.Time
	delivered bool
	latency   time.Duration
}

// Tracker keeps a rolling window of notification outcomes and publishes
// the SLO gauges after each observation. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
	now     func() time.Time
}

// NewTracker returns a Tracker over window (DefaultWindow when zero).
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, now: time.Now}
}

// Observe records one new-order notification. latency is measured from
// order creation and only counts for delivered notifications.
func (t *Tracker) Observe(delivered bool, latency time.Duration) {
	t.mu.Lock()
	now := t.now()
	t.samples = append(t.samples, sample{at: now, delivered: delivered, latency: latency})
	t.prune(now)
	ratio, p95 := t.compute()
	t.mu.Unlock()

	SLODeliveryRatio.Set(ratio)
	SLOLatencyP95.Set(p95.Seconds())
	SLOBudgetBurn.Set(budgetBurn(ratio))
}

// Snapshot returns the current delivery ratio, p95 latency and sample count.
func (t *Tracker) Snapshot() (ratio float64, p95 time.Duration, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(t.now())
	ratio, p95 = t.compute()
	return ratio, p95, len(t.samples)
}

func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	t.samples = t.samples[i:]
}

// compute must be called with mu held. An empty window reports a ratio of 1.
func (t *Tracker) compute() (float64, time.Duration) {
	if len(t.samples) == 0 {
		return 1, 0
	}
	var delivered int
	latencies := make([]time.Duration, 0, len(t.samples))
	for _, s := range t.samples {
		if s.delivered {
			delivered++
			latencies = append(latencies, s.latency)
		}
	}
	ratio := float64(delivered) / float64(len(t.samples))
	if len(latencies) == 0 {
		return ratio, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := (len(latencies)*95 + 99) / 100
	return ratio, latencies[idx-1]
}

func budgetBurn(ratio float64) float64 {
	return (1 - ratio) / (1 - DeliverySLO)
}
