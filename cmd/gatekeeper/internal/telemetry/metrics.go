package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("gatekeeper/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// ResolutionMetrics holds metric instruments for principal resolution.
type ResolutionMetrics struct {
	Resolutions        metric.Int64Counter // Resolutions by source and outcome
	ResolutionDuration metric.Float64Histogram
	ProviderFailures   metric.Int64Counter // Identity provider failures by source
}

// NewResolutionMetrics creates metric instruments for principal resolution.
func NewResolutionMetrics() (*ResolutionMetrics, error) {
	meter := otel.Meter("gatekeeper/iam")

	resolutions, err := meter.Int64Counter(
		"gatekeeper.resolution.count",
		metric.WithDescription("Total number of principal resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"gatekeeper.resolution.duration",
		metric.WithDescription("Principal resolution duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"gatekeeper.provider.failure.count",
		metric.WithDescription("Total number of identity provider failures during resolution"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &ResolutionMetrics{
		Resolutions:        resolutions,
		ResolutionDuration: duration,
		ProviderFailures:   failures,
	}, nil
}

// RecordResolution records a finished resolution. source is empty when
// nothing resolved.
func (m *ResolutionMetrics) RecordResolution(ctx context.Context, source, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrResolutionSource, source),
		attribute.String(AttrResolutionOutcome, outcome),
	)
	m.Resolutions.Add(ctx, 1, attrs)
	m.ResolutionDuration.Record(ctx, durationMs, attrs)
}

// RecordProviderFailure records an identity provider failure seen while
// trying source.
func (m *ResolutionMetrics) RecordProviderFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ProviderFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResolutionSource, source)))
}

// Common metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
)
