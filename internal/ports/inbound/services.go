// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceResolver resolves a single authoritative WAD price for an asset.
// Inbound adapters (HTTP handlers, CLI) call this.
type PriceResolver interface {
	// Resolve returns the asset's absolute price as an 18-decimal
	// fixed-point value, or a typed failure. Every call re-queries the
	// upstream source; there is no caching or fallback.
	Resolve(ctx context.Context, asset common.Address) (*big.Int, error)
}

// OracleAdmin is the administrative registration surface. Callers are
// expected to pass an external access-control gate before reaching it.
type OracleAdmin interface {
	// RegisterRoundBasedOracle validates a round-based source (decimals
	// probe plus a live trial resolution) and commits the configuration,
	// replacing any prior one for the asset.
	RegisterRoundBasedOracle(ctx context.Context, asset, source common.Address, timeout time.Duration, ethIndexed bool) error

	// RegisterIndexBasedOracle validates an index-based source and
	// commits the configuration with a fixed one-hour staleness timeout.
	RegisterIndexBasedOracle(ctx context.Context, asset, source common.Address, index int, indexDecimals uint8) error
}
