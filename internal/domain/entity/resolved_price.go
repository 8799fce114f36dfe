package entity

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ResolvedPrice records one successfully resolved price for the append-only
// price log. PriceWad is the 18-decimal fixed-point value.
type ResolvedPrice struct {
	Asset      common.Address
	PriceWad   *big.Int
	Kind       SourceKind
	ResolvedAt time.Time
}

// NewResolvedPrice creates a new ResolvedPrice with validation.
func NewResolvedPrice(asset common.Address, priceWad *big.Int, kind SourceKind, resolvedAt time.Time) (*ResolvedPrice, error) {
	p := &ResolvedPrice{
		Asset:      asset,
		PriceWad:   priceWad,
		Kind:       kind,
		ResolvedAt: resolvedAt,
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ResolvedPrice) validate() error {
	if p.Asset == (common.Address{}) {
		return fmt.Errorf("asset must not be the zero address")
	}
	if p.PriceWad == nil || p.PriceWad.Sign() <= 0 {
		return fmt.Errorf("priceWad must be positive")
	}
	if p.ResolvedAt.IsZero() {
		return fmt.Errorf("resolvedAt must not be zero")
	}
	return nil
}
