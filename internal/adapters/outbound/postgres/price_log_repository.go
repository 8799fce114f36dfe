package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that PriceLogRepository implements outbound.PriceLogRepository.
var _ outbound.PriceLogRepository = (*PriceLogRepository)(nil)

// PriceLogRepository is a PostgreSQL implementation of the outbound.PriceLogRepository
// port. Prices are stored as NUMERIC(78,0), wide enough for any 256-bit value.
type PriceLogRepository struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	batchSize int
}

// NewPriceLogRepository creates a new PostgreSQL price log repository.
// If batchSize is <= 0, a default batch size of 1000 is used.
func NewPriceLogRepository(pool *pgxpool.Pool, logger *slog.Logger, batchSize int) (*PriceLogRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &PriceLogRepository{
		pool:      pool,
		logger:    logger,
		batchSize: batchSize,
	}, nil
}

// AppendPrices inserts resolved price records in batches within one transaction.
func (r *PriceLogRepository) AppendPrices(ctx context.Context, prices []*entity.ResolvedPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(ctx, tx, r.logger)

	for i := 0; i < len(prices); i += r.batchSize {
		end := i + r.batchSize
		if end > len(prices) {
			end = len(prices)
		}
		if err := r.appendBatch(ctx, tx, prices[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *PriceLogRepository) appendBatch(ctx context.Context, tx pgx.Tx, prices []*entity.ResolvedPrice) error {
	if len(prices) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO resolved_price (asset, price_wad, kind, resolved_at)
		VALUES `)

	args := make([]any, 0, len(prices)*4)
	for i, p := range prices {
		if i > 0 {
			sb.WriteString(", ")
		}
		priceStr, err := bigIntToNumeric(p.PriceWad)
		if err != nil {
			return fmt.Errorf("price for %s: %w", p.Asset.Hex(), err)
		}
		baseIdx := i * 4
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d)",
			baseIdx+1, baseIdx+2, baseIdx+3, baseIdx+4))

		args = append(args, p.Asset.Bytes(), priceStr, int16(p.Kind), p.ResolvedAt)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting price batch: %w", err)
	}
	return nil
}

// GetLatestPrices retrieves the most recent logged price per asset.
func (r *PriceLogRepository) GetLatestPrices(ctx context.Context) (map[common.Address]*big.Int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (asset) asset, price_wad
		FROM resolved_price
		ORDER BY asset, resolved_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying latest prices: %w", err)
	}
	defer rows.Close()

	latest := make(map[common.Address]*big.Int)
	for rows.Next() {
		var (
			assetBytes []byte
			priceStr   string
		)
		if err := rows.Scan(&assetBytes, &priceStr); err != nil {
			return nil, fmt.Errorf("scanning latest price: %w", err)
		}
		price, err := numericToBigInt(priceStr)
		if err != nil {
			return nil, fmt.Errorf("latest price for %x: %w", assetBytes, err)
		}
		latest[common.BytesToAddress(assetBytes)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating latest prices: %w", err)
	}
	return latest, nil
}
