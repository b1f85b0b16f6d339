package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrResult = "result"
	attrStage  = "stage"
	attrTool   = "tool"
)

// Result attribute values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Auth flow stages recorded on auth_flows_total.
const (
	StageBegin    = "begin"
	StageComplete = "complete"
	StageLogout   = "logout"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a safe no-op recorder.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	authFlowsTotal metric.Int64Counter

	feedSyncsTotal   metric.Int64Counter
	feedSyncDuration metric.Float64Histogram
	emailsIngested   metric.Int64Counter
	storeRecords     metric.Int64Gauge

	toolInvocationsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments
// initialized on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.authFlowsTotal, err = meter.Int64Counter(
		"auth_flows_total",
		metric.WithDescription("Total number of auth flow transitions by stage and result"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_flows_total counter: %w", err)
	}

	m.feedSyncsTotal, err = meter.Int64Counter(
		"feed_syncs_total",
		metric.WithDescription("Total number of analyzed-email feed syncs"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed_syncs_total counter: %w", err)
	}

	m.feedSyncDuration, err = meter.Float64Histogram(
		"feed_sync_duration_seconds",
		metric.WithDescription("Analyzed-email feed sync duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed_sync_duration_seconds histogram: %w", err)
	}

	m.emailsIngested, err = meter.Int64Counter(
		"emails_ingested_total",
		metric.WithDescription("Total number of analyzed email records ingested"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create emails_ingested_total counter: %w", err)
	}

	m.storeRecords, err = meter.Int64Gauge(
		"triage_store_records",
		metric.WithDescription("Current number of records in the email record store"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage_store_records gauge: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(status)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
	))
}

// RecordAuthFlow records an auth flow transition outcome.
func (m *Metrics) RecordAuthFlow(ctx context.Context, stage, result string) {
	if m.authFlowsTotal == nil {
		return
	}
	m.authFlowsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrResult, result),
	))
}

// RecordFeedSync records a feed sync outcome, its duration, and how
// many records it ingested.
func (m *Metrics) RecordFeedSync(ctx context.Context, result string, ingested int, duration time.Duration) {
	if m.feedSyncsTotal == nil {
		return
	}
	m.feedSyncsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
	m.feedSyncDuration.Record(ctx, duration.Seconds())
	if ingested > 0 {
		m.emailsIngested.Add(ctx, int64(ingested))
	}
}

// RecordStoreSize records the current record store size.
func (m *Metrics) RecordStoreSize(ctx context.Context, size int) {
	if m.storeRecords == nil {
		return
	}
	m.storeRecords.Record(ctx, int64(size))
}

// RecordToolInvocation records an MCP tool invocation outcome.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, result string) {
	if m.toolInvocationsTotal == nil {
		return
	}
	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrResult, result),
	))
}
