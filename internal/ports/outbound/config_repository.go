package outbound

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
)

// ErrConfigNotFound is returned when no oracle configuration is registered
// for the requested asset.
var ErrConfigNotFound = errors.New("oracle configuration not found")

// ConfigRepository is the per-asset oracle configuration registry.
// PutConfig replaces any prior configuration for the asset atomically:
// a concurrent GetConfig observes either the old or the new configuration,
// never a partial write.
type ConfigRepository interface {
	// GetConfig returns the active configuration for an asset, or
	// ErrConfigNotFound.
	GetConfig(ctx context.Context, asset common.Address) (*entity.OracleConfig, error)

	// PutConfig commits a configuration, replacing any prior one for the
	// same asset (last write wins).
	PutConfig(ctx context.Context, cfg *entity.OracleConfig) error

	// ListConfigs returns all active configurations.
	ListConfigs(ctx context.Context) ([]*entity.OracleConfig, error)
}
