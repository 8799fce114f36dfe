package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RoundData is one observation from a round-based source.
type RoundData struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt uint64
}

// OracleReader reads upstream oracle contracts, addressed by their onchain
// address. Errors are transport-level failures; validity of the returned
// data (zero round, stale observation) is judged by the resolution engine.
type OracleReader interface {
	// Decimals returns the fixed-point precision a round-based source
	// reports its answers in.
	Decimals(ctx context.Context, source common.Address) (uint8, error)

	// LatestRoundData returns the most recent observation of a
	// round-based source.
	LatestRoundData(ctx context.Context, source common.Address) (RoundData, error)

	// SpotQuotes returns the full ordered quote batch of an index-based
	// source. Quotes follow the 8-decimal spot convention.
	SpotQuotes(ctx context.Context, source common.Address) ([]*big.Int, error)
}
