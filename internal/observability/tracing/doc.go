// Package tracing wires OpenTelemetry into the api and worker binaries.
//
// Setup installs the global provider. Spans are exported over OTLP/gRPC
// when an endpoint is configured; otherwise the no-op provider stays and
// instrumentation is free. Middleware traces inbound HTTP requests; the
// Telegram client and the fan-out start their own spans from the global
// provider.
package tracing
