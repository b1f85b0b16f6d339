// Package instrumentation provides OpenTelemetry metrics and tracing
// for triagemail.
//
// The Provider wires a meter provider (Prometheus, OTLP, or stdout
// exporter) and an optional tracer provider, and exposes a Metrics
// recorder with the counters and histograms the HTTP surface, the auth
// flow, and the feed sync record into.
//
// Metrics are served on a dedicated port by internal/server's metrics
// server, isolated from application traffic.
package instrumentation
