// Package testutil provides shared test doubles and ABI encoding helpers.
package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// FakeSource is the scripted state of one upstream oracle contract.
type FakeSource struct {
	Decimals uint8
	Round    outbound.RoundData
	Quotes   []*big.Int

	// Err, when set, is returned by every read of this source.
	Err error
}

// FakeOracleReader implements outbound.OracleReader over scripted sources.
type FakeOracleReader struct {
	mu      sync.Mutex
	sources map[common.Address]*FakeSource

	// CallCount counts every read across all sources.
	CallCount int
}

// NewFakeOracleReader creates an empty fake reader.
func NewFakeOracleReader() *FakeOracleReader {
	return &FakeOracleReader{sources: make(map[common.Address]*FakeSource)}
}

// SetSource installs or replaces the scripted state for a source address.
func (f *FakeOracleReader) SetSource(addr common.Address, src *FakeSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[addr] = src
}

func (f *FakeOracleReader) source(addr common.Address) (*FakeSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCount++
	src, ok := f.sources[addr]
	if !ok {
		return nil, fmt.Errorf("no fake source at %s", addr.Hex())
	}
	if src.Err != nil {
		return nil, src.Err
	}
	return src, nil
}

func (f *FakeOracleReader) Decimals(ctx context.Context, source common.Address) (uint8, error) {
	src, err := f.source(source)
	if err != nil {
		return 0, err
	}
	return src.Decimals, nil
}

func (f *FakeOracleReader) LatestRoundData(ctx context.Context, source common.Address) (outbound.RoundData, error) {
	src, err := f.source(source)
	if err != nil {
		return outbound.RoundData{}, err
	}
	return src.Round, nil
}

func (f *FakeOracleReader) SpotQuotes(ctx context.Context, source common.Address) ([]*big.Int, error) {
	src, err := f.source(source)
	if err != nil {
		return nil, err
	}
	return src.Quotes, nil
}
