package outbound

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPriceNotFound is returned when no last-good price is stored for an asset.
var ErrPriceNotFound = errors.New("last good price not found")

// LastGoodPriceStore holds the most recent successfully resolved price per
// asset. This is reserved state: the resolution engine never consults it and
// failures never fall back to it. The price worker keeps it current for
// external consumers.
type LastGoodPriceStore interface {
	SetLastGoodPrice(ctx context.Context, asset common.Address, price *big.Int) error

	// GetLastGoodPrice returns the stored price, or ErrPriceNotFound.
	GetLastGoodPrice(ctx context.Context, asset common.Address) (*big.Int, error)

	Close() error
}
