package resolver

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownAsset means no oracle configuration is registered for
	// the requested asset.
	ErrUnknownAsset = errors.New("no oracle configured for asset")

	// ErrInvalidConfiguration means a registration-time probe failed;
	// the prior configuration (if any) is retained unchanged.
	ErrInvalidConfiguration = errors.New("invalid oracle configuration")

	// ErrCompositionCycle means base-asset composition revisited an
	// asset already in the current resolution chain.
	ErrCompositionCycle = errors.New("base asset composition cycle")
)

// InvalidOracleResponseError means an asset is configured but its upstream
// source failed validation: stale observation, zero answer, or an
// out-of-range batch index.
type InvalidOracleResponseError struct {
	Asset common.Address
}

func (e *InvalidOracleResponseError) Error() string {
	return fmt.Sprintf("invalid oracle response for asset %s", e.Asset.Hex())
}
