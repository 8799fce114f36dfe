package outbound

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeConfigChanged EventType = "oracle_config_changed"
)

// Event is the interface that all published events implement.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType
	// Key returns a partition/grouping key for the event.
	Key() string
}

// ConfigChangedEvent is published after a registration commits a new oracle
// configuration for an asset.
type ConfigChangedEvent struct {
	Asset          common.Address `json:"asset"`
	Source         common.Address `json:"source"`
	Kind           string         `json:"kind"`
	TimeoutSeconds int64          `json:"timeoutSeconds"`
	NativeDecimals uint8          `json:"nativeDecimals,omitempty"`
	Index          int            `json:"index,omitempty"`
	IndexDecimals  uint8          `json:"indexDecimals,omitempty"`
	EthIndexed     bool           `json:"ethIndexed,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

// NewConfigChangedEvent builds the event for a committed configuration.
func NewConfigChangedEvent(cfg *entity.OracleConfig, occurredAt time.Time) ConfigChangedEvent {
	return ConfigChangedEvent{
		Asset:          cfg.Asset,
		Source:         cfg.Source,
		Kind:           cfg.Kind.String(),
		TimeoutSeconds: int64(cfg.Timeout.Seconds()),
		NativeDecimals: cfg.NativeDecimals,
		Index:          cfg.Index,
		IndexDecimals:  cfg.IndexDecimals,
		EthIndexed:     cfg.EthIndexed,
		OccurredAt:     occurredAt,
	}
}

// EventType returns the type of the event.
func (e ConfigChangedEvent) EventType() EventType {
	return EventTypeConfigChanged
}

// Key returns the asset address as the grouping key.
func (e ConfigChangedEvent) Key() string {
	return e.Asset.Hex()
}

// EventSink publishes configuration-change notifications for observability.
// The resolution engine does not consume these events.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
