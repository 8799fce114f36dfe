// Package entity holds the domain model for the price resolution system.
package entity

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SourceKind discriminates the two upstream oracle shapes.
type SourceKind uint8

const (
	// SourceRoundBased reports one value per discrete round with an
	// explicit update timestamp (Chainlink AggregatorV3 shape).
	SourceRoundBased SourceKind = iota

	// SourceIndexBased reports a batch of spot quotes for many assets at
	// once, addressed by position.
	SourceIndexBased
)

func (k SourceKind) String() string {
	switch k {
	case SourceRoundBased:
		return "round_based"
	case SourceIndexBased:
		return "index_based"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// BaseAsset is the sentinel identifier for the canonical base asset.
// An ETH-indexed configuration composes with this asset's resolved price.
var BaseAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

const (
	// WadDecimals is the common normalized fixed-point precision.
	WadDecimals = 18

	// SpotQuoteDecimals is the raw quote convention of index-based
	// sources: a quote of 1e8 means a spot price of 1.0.
	SpotQuoteDecimals = 8

	// DefaultIndexTimeout is the staleness bound assigned to index-based
	// configurations at registration.
	DefaultIndexTimeout = time.Hour
)

// OracleConfig is the per-asset oracle configuration. Each asset has at most
// one active configuration; a fresh registration replaces the prior one
// atomically. The registry only ever holds configurations that passed a live
// trial resolution at registration time.
type OracleConfig struct {
	Asset  common.Address
	Source common.Address
	Kind   SourceKind

	// Timeout is the maximum age a reported observation may have before
	// it is considered stale. Index-based sources have no intrinsic
	// observation timestamp, so their timeout is structurally never
	// exceeded; it is stored for uniformity.
	Timeout time.Duration

	// NativeDecimals is the fixed-point precision the source reports in.
	// Round-based only; never zero for a committed configuration.
	NativeDecimals uint8

	// IndexDecimals shifts an index-based raw quote from the 8-decimal
	// spot convention. Always <= SpotQuoteDecimals.
	IndexDecimals uint8

	// Index is the position of this asset's quote in the batch response.
	// Index-based only.
	Index int

	// EthIndexed marks the resolved value as relative to BaseAsset rather
	// than absolute; resolution composes it with BaseAsset's own price.
	EthIndexed bool

	UpdatedAt time.Time
}

// NewRoundBasedConfig creates a round-based oracle configuration with validation.
func NewRoundBasedConfig(asset, source common.Address, timeout time.Duration, nativeDecimals uint8, ethIndexed bool) (*OracleConfig, error) {
	cfg := &OracleConfig{
		Asset:          asset,
		Source:         source,
		Kind:           SourceRoundBased,
		Timeout:        timeout,
		NativeDecimals: nativeDecimals,
		EthIndexed:     ethIndexed,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewIndexBasedConfig creates an index-based oracle configuration with
// validation. The staleness timeout is fixed at DefaultIndexTimeout and the
// value is always absolute (never ETH-indexed).
func NewIndexBasedConfig(asset, source common.Address, index int, indexDecimals uint8) (*OracleConfig, error) {
	cfg := &OracleConfig{
		Asset:         asset,
		Source:        source,
		Kind:          SourceIndexBased,
		Timeout:       DefaultIndexTimeout,
		IndexDecimals: indexDecimals,
		Index:         index,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *OracleConfig) validate() error {
	if c.Asset == (common.Address{}) {
		return fmt.Errorf("asset must not be the zero address")
	}
	if c.Source == (common.Address{}) {
		return fmt.Errorf("source must not be the zero address")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	switch c.Kind {
	case SourceRoundBased:
		if c.NativeDecimals == 0 {
			return fmt.Errorf("nativeDecimals must not be zero for a round-based source")
		}
	case SourceIndexBased:
		if c.Index < 0 {
			return fmt.Errorf("index must be non-negative, got %d", c.Index)
		}
		if c.IndexDecimals > SpotQuoteDecimals {
			return fmt.Errorf("indexDecimals must not exceed %d, got %d", SpotQuoteDecimals, c.IndexDecimals)
		}
	default:
		return fmt.Errorf("unknown source kind %d", c.Kind)
	}
	return nil
}
