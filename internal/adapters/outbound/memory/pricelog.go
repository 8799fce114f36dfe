package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that PriceLog implements outbound.PriceLogRepository.
var _ outbound.PriceLogRepository = (*PriceLog)(nil)

// PriceLog is an in-memory append-only resolved price log.
type PriceLog struct {
	mu     sync.RWMutex
	prices []*entity.ResolvedPrice
	latest map[common.Address]*big.Int
}

// NewPriceLog creates an empty price log.
func NewPriceLog() *PriceLog {
	return &PriceLog{latest: make(map[common.Address]*big.Int)}
}

// AppendPrices appends resolved price records.
func (l *PriceLog) AppendPrices(ctx context.Context, prices []*entity.ResolvedPrice) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range prices {
		l.prices = append(l.prices, p)
		l.latest[p.Asset] = new(big.Int).Set(p.PriceWad)
	}
	return nil
}

// GetLatestPrices returns the most recent logged price per asset.
func (l *PriceLog) GetLatestPrices(ctx context.Context) (map[common.Address]*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[common.Address]*big.Int, len(l.latest))
	for asset, price := range l.latest {
		out[asset] = new(big.Int).Set(price)
	}
	return out, nil
}

// All returns every logged record, for test assertions.
func (l *PriceLog) All() []*entity.ResolvedPrice {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entity.ResolvedPrice, len(l.prices))
	copy(out, l.prices)
	return out
}
