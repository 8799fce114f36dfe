package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that Metrics implements outbound.MetricsRecorder.
var _ outbound.MetricsRecorder = (*Metrics)(nil)

// Metrics implements the MetricsRecorder interface using OpenTelemetry.
type Metrics struct {
	resolutionLatency metric.Float64Histogram
	resolutionsTotal  metric.Int64Counter
}

// NewMetrics creates a new OpenTelemetry metrics recorder.
// meterName should typically be the package name or service name.
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	latency, err := meter.Float64Histogram(
		"price_resolution_duration_seconds",
		metric.WithDescription("Time taken to resolve one asset price"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create price_resolution_duration_seconds histogram: %w", err)
	}

	resolutions, err := meter.Int64Counter(
		"price_resolutions_total",
		metric.WithDescription("Total number of price resolution attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create price_resolutions_total counter: %w", err)
	}

	return &Metrics{
		resolutionLatency: latency,
		resolutionsTotal:  resolutions,
	}, nil
}

// RecordResolution records one resolution attempt with its source kind and outcome.
func (m *Metrics) RecordResolution(ctx context.Context, kind string, success bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	)
	m.resolutionLatency.Record(ctx, elapsed.Seconds(), attrs)
	m.resolutionsTotal.Add(ctx, 1, attrs)
}
