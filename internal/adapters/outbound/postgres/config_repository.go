package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that ConfigRepository implements outbound.ConfigRepository.
var _ outbound.ConfigRepository = (*ConfigRepository)(nil)

// ConfigRepository is a PostgreSQL implementation of the outbound.ConfigRepository port.
// The asset address is the primary key, so an upsert replaces the prior
// configuration in a single statement and concurrent readers never observe
// a partial write.
type ConfigRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConfigRepository creates a new PostgreSQL oracle configuration repository.
func NewConfigRepository(pool *pgxpool.Pool, logger *slog.Logger) (*ConfigRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// GetConfig retrieves the active configuration for an asset.
func (r *ConfigRepository) GetConfig(ctx context.Context, asset common.Address) (*entity.OracleConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT asset, source, kind, timeout_seconds, native_decimals,
		       index_decimals, quote_index, eth_indexed, updated_at
		FROM oracle_config
		WHERE asset = $1
	`, asset.Bytes())

	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbound.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying oracle config for %s: %w", asset.Hex(), err)
	}
	return cfg, nil
}

// PutConfig commits a configuration, replacing any prior one for the asset.
func (r *ConfigRepository) PutConfig(ctx context.Context, cfg *entity.OracleConfig) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO oracle_config (asset, source, kind, timeout_seconds, native_decimals,
		                           index_decimals, quote_index, eth_indexed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset) DO UPDATE SET
			source = EXCLUDED.source,
			kind = EXCLUDED.kind,
			timeout_seconds = EXCLUDED.timeout_seconds,
			native_decimals = EXCLUDED.native_decimals,
			index_decimals = EXCLUDED.index_decimals,
			quote_index = EXCLUDED.quote_index,
			eth_indexed = EXCLUDED.eth_indexed,
			updated_at = EXCLUDED.updated_at
	`,
		cfg.Asset.Bytes(), cfg.Source.Bytes(), int16(cfg.Kind),
		int64(cfg.Timeout/time.Second), int16(cfg.NativeDecimals),
		int16(cfg.IndexDecimals), cfg.Index, cfg.EthIndexed, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting oracle config for %s: %w", cfg.Asset.Hex(), err)
	}
	return nil
}

// ListConfigs retrieves all active configurations ordered by asset.
func (r *ConfigRepository) ListConfigs(ctx context.Context) ([]*entity.OracleConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT asset, source, kind, timeout_seconds, native_decimals,
		       index_decimals, quote_index, eth_indexed, updated_at
		FROM oracle_config
		ORDER BY asset
	`)
	if err != nil {
		return nil, fmt.Errorf("querying oracle configs: %w", err)
	}
	defer rows.Close()

	var configs []*entity.OracleConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning oracle config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating oracle configs: %w", err)
	}
	return configs, nil
}

func scanConfig(row pgx.Row) (*entity.OracleConfig, error) {
	var (
		assetBytes, sourceBytes   []byte
		kind, nativeDec, indexDec int16
		timeoutSeconds            int64
		cfg                       entity.OracleConfig
	)
	err := row.Scan(
		&assetBytes, &sourceBytes, &kind, &timeoutSeconds, &nativeDec,
		&indexDec, &cfg.Index, &cfg.EthIndexed, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.Asset = common.BytesToAddress(assetBytes)
	cfg.Source = common.BytesToAddress(sourceBytes)
	cfg.Kind = entity.SourceKind(kind)
	cfg.Timeout = time.Duration(timeoutSeconds) * time.Second
	cfg.NativeDecimals = uint8(nativeDec)
	cfg.IndexDecimals = uint8(indexDec)
	return &cfg, nil
}
