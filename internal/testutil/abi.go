package testutil

import (
	"math/big"
	"testing"

	"github.com/archon-research/pricefeed/internal/pkg/blockchain/abis"
)

// PackLatestRoundData ABI-encodes latestRoundData() return data.
func PackLatestRoundData(t *testing.T, roundID, answer, startedAt, updatedAt, answeredInRound *big.Int) []byte {
	t.Helper()
	feedABI, err := abis.GetAggregatorV3ABI()
	if err != nil {
		t.Fatalf("loading AggregatorV3 ABI: %v", err)
	}
	data, err := feedABI.Methods["latestRoundData"].Outputs.Pack(roundID, answer, startedAt, updatedAt, answeredInRound)
	if err != nil {
		t.Fatalf("packing latestRoundData: %v", err)
	}
	return data
}

// PackDecimals ABI-encodes decimals() return data.
func PackDecimals(t *testing.T, decimals uint8) []byte {
	t.Helper()
	feedABI, err := abis.GetAggregatorV3ABI()
	if err != nil {
		t.Fatalf("loading AggregatorV3 ABI: %v", err)
	}
	data, err := feedABI.Methods["decimals"].Outputs.Pack(decimals)
	if err != nil {
		t.Fatalf("packing decimals: %v", err)
	}
	return data
}

// PackSpotQuotes ABI-encodes quotes as getSpotQuotes() return data.
func PackSpotQuotes(t *testing.T, quotes []*big.Int) []byte {
	t.Helper()
	spotABI, err := abis.GetSpotIndexABI()
	if err != nil {
		t.Fatalf("loading spot index ABI: %v", err)
	}
	data, err := spotABI.Methods["getSpotQuotes"].Outputs.Pack(quotes)
	if err != nil {
		t.Fatalf("packing getSpotQuotes: %v", err)
	}
	return data
}
