package testutil

import (
	"context"
	"sync"
	"time"
)

// ResolutionRecord is one recorded resolution attempt.
type ResolutionRecord struct {
	Kind    string
	Success bool
	Elapsed time.Duration
}

// MetricsRecorder implements outbound.MetricsRecorder for testing.
type MetricsRecorder struct {
	mu      sync.Mutex
	records []ResolutionRecord
}

func (m *MetricsRecorder) RecordResolution(ctx context.Context, kind string, success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, ResolutionRecord{Kind: kind, Success: success, Elapsed: elapsed})
}

// Records returns a copy of all recorded resolutions.
func (m *MetricsRecorder) Records() []ResolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ResolutionRecord, len(m.records))
	copy(out, m.records)
	return out
}
