package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"perfumery-notify/internal/pkg/config"
)

// WorkerMetrics embeds the worker's config metrics and tracks scheduled
// jobs:
//   - worker_cron_job_runs_total{job,status}
//   - worker_cron_job_duration_seconds{job}
//   - worker_cron_job_last_success_timestamp{job}
//
// Metrics register with the default registry, so create it once per process.
type WorkerMetrics struct {
	*config.ConfigMetrics

	CronJobRunsTotal            *prometheus.CounterVec
	CronJobDurationSeconds      *prometheus.HistogramVec
	CronJobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of cron job runs by job and status (success/failure)",
		}, []string{"job", "status"}),

		CronJobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job execution in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"job"}),

		CronJobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful cron job run",
		}, []string{"job"}),
	}
}

// RecordJobRun increments the run counter of job for status.
func (m *WorkerMetrics) RecordJobRun(job, status string) {
	m.CronJobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes one run of job.
func (m *WorkerMetrics) RecordJobDuration(job string, d time.Duration) {
	m.CronJobDurationSeconds.WithLabelValues(job).Observe(d.Seconds())
}

// RecordLastSuccess stamps job's last successful completion.
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.CronJobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// Job adapts fn into a cron.Job-compatible func. Every run gets its own
// timeout derived from parent and is recorded under name.
func (m *WorkerMetrics) Job(parent context.Context, name string, timeout time.Duration, logger *slog.Logger, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		m.RecordJobDuration(name, time.Since(start))
		if err != nil {
			m.RecordJobRun(name, "failure")
			logger.Warn("cron job failed",
				slog.String("job", name),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err))
			return
		}
		m.RecordJobRun(name, "success")
		m.RecordLastSuccess(name)
		logger.Debug("cron job finished", slog.String("job", name))
	}
}
