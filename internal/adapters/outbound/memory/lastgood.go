package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that LastGoodPriceStore implements the port.
var _ outbound.LastGoodPriceStore = (*LastGoodPriceStore)(nil)

// LastGoodPriceStore is an in-memory last-good price slot per asset.
type LastGoodPriceStore struct {
	mu     sync.RWMutex
	prices map[common.Address]*big.Int
}

// NewLastGoodPriceStore creates an empty store.
func NewLastGoodPriceStore() *LastGoodPriceStore {
	return &LastGoodPriceStore{prices: make(map[common.Address]*big.Int)}
}

// SetLastGoodPrice stores the price for an asset.
func (s *LastGoodPriceStore) SetLastGoodPrice(ctx context.Context, asset common.Address, price *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[asset] = new(big.Int).Set(price)
	return nil
}

// GetLastGoodPrice returns the stored price, or outbound.ErrPriceNotFound.
func (s *LastGoodPriceStore) GetLastGoodPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[asset]
	if !ok {
		return nil, outbound.ErrPriceNotFound
	}
	return new(big.Int).Set(price), nil
}

// Close is a no-op for the in-memory store.
func (s *LastGoodPriceStore) Close() error {
	return nil
}
