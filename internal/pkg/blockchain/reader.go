// Package blockchain reads upstream oracle contracts over Multicall3.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/pkg/blockchain/abis"
	"github.com/archon-research/pricefeed/internal/pkg/retry"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that Reader implements outbound.OracleReader.
var _ outbound.OracleReader = (*Reader)(nil)

// Reader reads round-based and index-based oracle contracts at the latest
// block. Transient RPC failures are retried with exponential backoff;
// contract-level failures are not.
type Reader struct {
	mc       outbound.Multicaller
	feedABI  *abi.ABI
	spotABI  *abi.ABI
	retryCfg retry.Config
	logger   *slog.Logger
}

// NewReader creates an onchain oracle reader.
func NewReader(mc outbound.Multicaller, logger *slog.Logger) (*Reader, error) {
	if mc == nil {
		return nil, fmt.Errorf("multicaller cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	feedABI, err := abis.GetAggregatorV3ABI()
	if err != nil {
		return nil, fmt.Errorf("loading AggregatorV3 ABI: %w", err)
	}
	spotABI, err := abis.GetSpotIndexABI()
	if err != nil {
		return nil, fmt.Errorf("loading spot index ABI: %w", err)
	}

	return &Reader{
		mc:       mc,
		feedABI:  feedABI,
		spotABI:  spotABI,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.With("component", "oracle-reader"),
	}, nil
}

// Decimals returns the fixed-point precision a round-based source reports in.
func (r *Reader) Decimals(ctx context.Context, source common.Address) (uint8, error) {
	callData, err := r.feedABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("packing decimals: %w", err)
	}

	returnData, err := r.call(ctx, source, callData)
	if err != nil {
		return 0, err
	}

	unpacked, err := r.feedABI.Unpack("decimals", returnData)
	if err != nil {
		return 0, fmt.Errorf("unpacking decimals from %s: %w", source.Hex(), err)
	}
	decimals, ok := unpacked[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected return type from decimals")
	}
	return decimals, nil
}

// LatestRoundData returns the most recent observation of a round-based source.
func (r *Reader) LatestRoundData(ctx context.Context, source common.Address) (outbound.RoundData, error) {
	callData, err := r.feedABI.Pack("latestRoundData")
	if err != nil {
		return outbound.RoundData{}, fmt.Errorf("packing latestRoundData: %w", err)
	}

	returnData, err := r.call(ctx, source, callData)
	if err != nil {
		return outbound.RoundData{}, err
	}

	unpacked, err := r.feedABI.Unpack("latestRoundData", returnData)
	if err != nil {
		return outbound.RoundData{}, fmt.Errorf("unpacking latestRoundData from %s: %w", source.Hex(), err)
	}

	// (uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
	roundID := unpacked[0].(*big.Int)
	answer := unpacked[1].(*big.Int)
	updatedAt := unpacked[3].(*big.Int)

	return outbound.RoundData{
		RoundID:   roundID,
		Answer:    answer,
		UpdatedAt: updatedAt.Uint64(),
	}, nil
}

// SpotQuotes returns the full ordered quote batch of an index-based source.
func (r *Reader) SpotQuotes(ctx context.Context, source common.Address) ([]*big.Int, error) {
	callData, err := r.spotABI.Pack("getSpotQuotes")
	if err != nil {
		return nil, fmt.Errorf("packing getSpotQuotes: %w", err)
	}

	returnData, err := r.call(ctx, source, callData)
	if err != nil {
		return nil, err
	}

	unpacked, err := r.spotABI.Unpack("getSpotQuotes", returnData)
	if err != nil {
		return nil, fmt.Errorf("unpacking getSpotQuotes from %s: %w", source.Hex(), err)
	}
	quotes, ok := unpacked[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from getSpotQuotes")
	}
	return quotes, nil
}

// call executes one contract read at the latest block. RPC transport
// failures are retried; a reverting contract call is surfaced immediately.
func (r *Reader) call(ctx context.Context, target common.Address, callData []byte) ([]byte, error) {
	results, err := retry.Do(ctx, r.retryCfg, isTransientRPCError,
		func(attempt int, err error, backoff time.Duration) {
			r.logger.Warn("retrying contract read",
				"target", target.Hex(), "attempt", attempt, "error", err)
		},
		func() ([]outbound.Result, error) {
			return r.mc.Execute(ctx, []outbound.Call{
				{Target: target, AllowFailure: false, CallData: callData},
			}, nil)
		})
	if err != nil {
		return nil, fmt.Errorf("executing call to %s: %w", target.Hex(), err)
	}

	if len(results) != 1 {
		return nil, fmt.Errorf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success {
		return nil, fmt.Errorf("call to %s reverted", target.Hex())
	}
	return results[0].ReturnData, nil
}

// isTransientRPCError reports whether an RPC failure is worth retrying.
func isTransientRPCError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"too many requests",
		"rate limit",
		"EOF",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
