// eventsink.go provides an in-memory implementation of EventSink.
//
// This adapter stores all published events in memory for testing purposes.
// It provides helper methods for inspecting events during tests:
//   - GetEvents(): Returns all published events
//   - GetConfigChangedEvents(): Type-specific event retrieval
//   - SetOnPublish(): Register callback for event assertions
//
// All operations are thread-safe. For production, use the SNS adapter.
package memory

import (
	"context"
	"sync"

	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// EventSink is an in-memory implementation of the EventSink port for testing.
// It stores all published events for later inspection.
type EventSink struct {
	mu     sync.RWMutex
	events []outbound.Event
	closed bool

	// Callback for test assertions
	onPublish func(outbound.Event)
}

// NewEventSink creates a new in-memory event sink for testing.
func NewEventSink() *EventSink {
	return &EventSink{
		events: make([]outbound.Event, 0),
	}
}

// Publish stores the event in memory.
func (s *EventSink) Publish(ctx context.Context, event outbound.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.events = append(s.events, event)

	if s.onPublish != nil {
		s.onPublish(event)
	}

	return nil
}

// Close marks the sink as closed.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// GetEvents returns all published events.
func (s *EventSink) GetEvents() []outbound.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.Event, len(s.events))
	copy(result, s.events)
	return result
}

// GetConfigChangedEvents returns all config-changed events.
func (s *EventSink) GetConfigChangedEvents() []outbound.ConfigChangedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.ConfigChangedEvent, 0)
	for _, e := range s.events {
		if ce, ok := e.(outbound.ConfigChangedEvent); ok {
			result = append(result, ce)
		}
	}
	return result
}

// SetOnPublish registers a callback invoked on every publish.
func (s *EventSink) SetOnPublish(fn func(outbound.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}
