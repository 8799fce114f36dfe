// Package memory provides in-memory implementations of the outbound ports.
// Useful for testing and the one-shot CLI.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that ConfigRepository implements outbound.ConfigRepository.
var _ outbound.ConfigRepository = (*ConfigRepository)(nil)

// ConfigRepository is an in-memory oracle configuration registry. Writes
// replace the whole per-asset record under the lock, so readers never
// observe a partially written configuration.
type ConfigRepository struct {
	mu      sync.RWMutex
	configs map[common.Address]entity.OracleConfig
}

// NewConfigRepository creates an empty registry.
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{
		configs: make(map[common.Address]entity.OracleConfig),
	}
}

// GetConfig returns a copy of the active configuration for an asset.
func (r *ConfigRepository) GetConfig(ctx context.Context, asset common.Address) (*entity.OracleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[asset]
	if !ok {
		return nil, outbound.ErrConfigNotFound
	}
	out := cfg
	return &out, nil
}

// PutConfig commits a configuration, replacing any prior one for the asset.
func (r *ConfigRepository) PutConfig(ctx context.Context, cfg *entity.OracleConfig) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Asset] = *cfg
	return nil
}

// ListConfigs returns copies of all active configurations.
func (r *ConfigRepository) ListConfigs(ctx context.Context) ([]*entity.OracleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.OracleConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		c := cfg
		out = append(out, &c)
	}
	return out, nil
}
