package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
)

// PriceLogRepository is the append-only log of resolved prices, written by
// the price worker. The resolution path itself never reads it.
type PriceLogRepository interface {
	// AppendPrices inserts resolved price records in batches.
	AppendPrices(ctx context.Context, prices []*entity.ResolvedPrice) error

	// GetLatestPrices returns the most recent logged price per asset.
	// Used for change detection: only log prices that differ from the
	// previous resolution.
	GetLatestPrices(ctx context.Context) (map[common.Address]*big.Int, error)
}
