// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"time"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the resolution engine to record metrics without depending on
// specific telemetry implementations.
type MetricsRecorder interface {
	// RecordResolution records one price resolution attempt. kind is the
	// source kind of the root asset, success is whether a price was
	// produced, and elapsed is the end-to-end resolution duration.
	RecordResolution(ctx context.Context, kind string, success bool, elapsed time.Duration)
}
