// Package resolver implements the price resolution engine: given an asset
// with a registered oracle configuration, it queries the configured upstream
// source, validates freshness, normalizes to an 18-decimal WAD, and composes
// ETH-indexed values with the base asset's own resolved price.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/pkg/wad"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Config holds optional engine dependencies.
type Config struct {
	Logger  *slog.Logger
	Metrics outbound.MetricsRecorder

	// Now overrides the freshness clock; nil means time.Now.
	Now func() time.Time
}

// Engine resolves authoritative WAD prices. Resolution is a pure read: it
// performs no writes and keeps no cache, so two consecutive resolutions
// against unchanged upstream state return identical values.
type Engine struct {
	configs outbound.ConfigRepository
	reader  outbound.OracleReader
	metrics outbound.MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates a resolution engine.
func NewEngine(cfg Config, configs outbound.ConfigRepository, reader outbound.OracleReader) (*Engine, error) {
	if configs == nil {
		return nil, fmt.Errorf("config repository cannot be nil")
	}
	if reader == nil {
		return nil, fmt.Errorf("oracle reader cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		configs: configs,
		reader:  reader,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "resolver"),
		now:     cfg.Now,
	}, nil
}

// Resolve returns the asset's absolute price as an 18-decimal WAD.
// Failure modes: ErrUnknownAsset when no configuration exists,
// InvalidOracleResponseError when the configured source cannot produce a
// fresh non-zero in-range value, and wad.ErrScalingOverflow when decimal
// normalization would exceed 256 bits. All are terminal for the call.
func (e *Engine) Resolve(ctx context.Context, asset common.Address) (*big.Int, error) {
	start := e.now()
	price, kind, err := e.resolve(ctx, asset, map[common.Address]bool{})
	if e.metrics != nil {
		e.metrics.RecordResolution(ctx, kind, err == nil, e.now().Sub(start))
	}
	return price, err
}

// TrialResolve resolves a candidate configuration that has not been
// committed to the registry. Registration uses it to prove a source live
// before replacing the asset's prior configuration.
func (e *Engine) TrialResolve(ctx context.Context, cfg *entity.OracleConfig) (*big.Int, error) {
	// The candidate asset itself is in the chain: a candidate whose base
	// resolution loops back to it is a cycle, not a lookup.
	visited := map[common.Address]bool{cfg.Asset: true}
	price, _, err := e.resolveConfig(ctx, cfg, visited)
	return price, err
}

func (e *Engine) resolve(ctx context.Context, asset common.Address, visited map[common.Address]bool) (*big.Int, string, error) {
	if visited[asset] {
		return nil, "", fmt.Errorf("resolving %s: %w", asset.Hex(), ErrCompositionCycle)
	}
	visited[asset] = true

	cfg, err := e.configs.GetConfig(ctx, asset)
	if errors.Is(err, outbound.ErrConfigNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading oracle config for %s: %w", asset.Hex(), err)
	}

	return e.resolveConfig(ctx, cfg, visited)
}

func (e *Engine) resolveConfig(ctx context.Context, cfg *entity.OracleConfig, visited map[common.Address]bool) (*big.Int, string, error) {
	kind := cfg.Kind.String()

	var price *big.Int
	var err error
	switch cfg.Kind {
	case entity.SourceRoundBased:
		price, err = e.roundBasedPrice(ctx, cfg)
	case entity.SourceIndexBased:
		price, err = e.indexBasedPrice(ctx, cfg)
	default:
		return nil, kind, fmt.Errorf("asset %s: unsupported source kind %d", cfg.Asset.Hex(), cfg.Kind)
	}
	if err != nil {
		return nil, kind, err
	}

	if price.Sign() == 0 {
		return nil, kind, &InvalidOracleResponseError{Asset: cfg.Asset}
	}

	if cfg.EthIndexed {
		base, _, err := e.resolve(ctx, entity.BaseAsset, visited)
		if err != nil {
			return nil, kind, fmt.Errorf("resolving base asset for %s: %w", cfg.Asset.Hex(), err)
		}
		price, err = wad.Mul(base, price)
		if err != nil {
			return nil, kind, fmt.Errorf("composing base price for %s: %w", cfg.Asset.Hex(), err)
		}
		if price.Sign() == 0 {
			return nil, kind, &InvalidOracleResponseError{Asset: cfg.Asset}
		}
	}

	return price, kind, nil
}

// roundBasedPrice interprets a latestRoundData observation. A zero return
// means "no valid fresh observation"; the caller turns that into an
// InvalidOracleResponseError.
func (e *Engine) roundBasedPrice(ctx context.Context, cfg *entity.OracleConfig) (*big.Int, error) {
	rd, err := e.reader.LatestRoundData(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("reading round data for %s: %w", cfg.Asset.Hex(), err)
	}

	// An observation counts only with a non-zero round, timestamp and
	// answer; anything else is treated as no observation at all.
	if rd.RoundID == nil || rd.RoundID.Sign() == 0 ||
		rd.UpdatedAt == 0 ||
		rd.Answer == nil || rd.Answer.Sign() <= 0 {
		return new(big.Int), nil
	}

	age := e.now().Unix() - int64(rd.UpdatedAt)
	if age > int64(cfg.Timeout.Seconds()) {
		e.logger.Debug("stale round observation",
			"asset", cfg.Asset.Hex(),
			"source", cfg.Source.Hex(),
			"ageSeconds", age,
			"timeout", cfg.Timeout)
		return new(big.Int), nil
	}

	price, err := wad.ScalePriceByDigits(rd.Answer, cfg.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("scaling answer for %s: %w", cfg.Asset.Hex(), err)
	}
	return price, nil
}

// indexBasedPrice interprets one quote out of a batch response. The batch
// call carries no intrinsic observation timestamp, so the staleness check is
// structurally always satisfied for this source kind.
func (e *Engine) indexBasedPrice(ctx context.Context, cfg *entity.OracleConfig) (*big.Int, error) {
	quotes, err := e.reader.SpotQuotes(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("reading spot quotes for %s: %w", cfg.Asset.Hex(), err)
	}

	if cfg.Index >= len(quotes) {
		e.logger.Debug("quote index out of range",
			"asset", cfg.Asset.Hex(),
			"index", cfg.Index,
			"batchSize", len(quotes))
		return new(big.Int), nil
	}

	quote := quotes[cfg.Index]
	if quote == nil || quote.Sign() <= 0 {
		return new(big.Int), nil
	}

	// quote * 10^18 / 10^(8 - indexDecimals)
	price, err := wad.ScalePriceByDigits(quote, entity.SpotQuoteDecimals-cfg.IndexDecimals)
	if err != nil {
		return nil, fmt.Errorf("scaling quote for %s: %w", cfg.Asset.Hex(), err)
	}
	return price, nil
}
