// Package observability groups the shop's logging, metrics, tracing and
// delivery SLO tracking.
//
// Subpackages:
//   - logging: slog construction, secret redaction, request-scoped loggers
//   - metrics: Prometheus business and database metrics
//   - tracing: OpenTelemetry setup and HTTP middleware
//   - slo: rolling delivery ratio and latency objectives
package observability
