package resolver

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/adapters/outbound/memory"
	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
	"github.com/archon-research/pricefeed/internal/testutil"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var (
	assetA    = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	assetB    = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	sourceA   = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	sourceB   = common.HexToAddress("0x0000000000000000000000000000000000000B01")
	sourceEth = common.HexToAddress("0x0000000000000000000000000000000000000E01")
)

// testNow is the fixed clock for all freshness checks.
var testNow = time.Unix(1_760_000_000, 0).UTC()

func newTestEngine(t *testing.T, reader outbound.OracleReader) (*Engine, *memory.ConfigRepository) {
	t.Helper()
	configs := memory.NewConfigRepository()
	engine, err := NewEngine(Config{Now: func() time.Time { return testNow }}, configs, reader)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, configs
}

func putRoundConfig(t *testing.T, configs *memory.ConfigRepository, asset, source common.Address, timeout time.Duration, decimals uint8, ethIndexed bool) {
	t.Helper()
	cfg, err := entity.NewRoundBasedConfig(asset, source, timeout, decimals, ethIndexed)
	if err != nil {
		t.Fatalf("NewRoundBasedConfig: %v", err)
	}
	if err := configs.PutConfig(context.Background(), cfg); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
}

func putIndexConfig(t *testing.T, configs *memory.ConfigRepository, asset, source common.Address, index int, indexDecimals uint8) {
	t.Helper()
	cfg, err := entity.NewIndexBasedConfig(asset, source, index, indexDecimals)
	if err != nil {
		t.Fatalf("NewIndexBasedConfig: %v", err)
	}
	if err := configs.PutConfig(context.Background(), cfg); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
}

func freshRound(answer int64) outbound.RoundData {
	return outbound.RoundData{
		RoundID:   big.NewInt(42),
		Answer:    big.NewInt(answer),
		UpdatedAt: uint64(testNow.Unix() - 60),
	}
}

func wadString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("parsing %q", s)
	}
	return v
}

// ---------------------------------------------------------------------------
// Round-based resolution
// ---------------------------------------------------------------------------

func TestResolveRoundBased(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	// 2000.00000000 at 8 decimals.
	reader.SetSource(sourceA, &testutil.FakeSource{Round: freshRound(200_000_000_000)})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, 4*time.Hour, 8, false)

	price, err := engine.Resolve(context.Background(), assetA)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := wadString(t, "2000000000000000000000"); price.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", price, want)
	}
}

func TestResolveRoundBasedStale(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: outbound.RoundData{
		RoundID:   big.NewInt(42),
		Answer:    big.NewInt(200_000_000_000),
		UpdatedAt: uint64(testNow.Add(-2 * time.Hour).Unix()),
	}})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

	_, err := engine.Resolve(context.Background(), assetA)
	var invalid *InvalidOracleResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOracleResponseError", err)
	}
	if invalid.Asset != assetA {
		t.Errorf("error names asset %s, want %s", invalid.Asset.Hex(), assetA.Hex())
	}
}

func TestResolveRoundBasedStaleBoundary(t *testing.T) {
	// An observation exactly timeout seconds old is still fresh.
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: outbound.RoundData{
		RoundID:   big.NewInt(1),
		Answer:    big.NewInt(100_000_000),
		UpdatedAt: uint64(testNow.Add(-time.Hour).Unix()),
	}})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

	if _, err := engine.Resolve(context.Background(), assetA); err != nil {
		t.Fatalf("at the freshness boundary: %v", err)
	}
}

func TestResolveRoundBasedInvalidObservations(t *testing.T) {
	tests := []struct {
		name  string
		round outbound.RoundData
	}{
		{
			name: "zero round id",
			round: outbound.RoundData{
				RoundID:   big.NewInt(0),
				Answer:    big.NewInt(100_000_000),
				UpdatedAt: uint64(testNow.Unix()),
			},
		},
		{
			name: "zero answer",
			round: outbound.RoundData{
				RoundID:   big.NewInt(7),
				Answer:    big.NewInt(0),
				UpdatedAt: uint64(testNow.Unix()),
			},
		},
		{
			name: "negative answer",
			round: outbound.RoundData{
				RoundID:   big.NewInt(7),
				Answer:    big.NewInt(-5),
				UpdatedAt: uint64(testNow.Unix()),
			},
		},
		{
			name: "zero timestamp",
			round: outbound.RoundData{
				RoundID:   big.NewInt(7),
				Answer:    big.NewInt(100_000_000),
				UpdatedAt: 0,
			},
		},
		{
			name:  "nil fields",
			round: outbound.RoundData{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := testutil.NewFakeOracleReader()
			reader.SetSource(sourceA, &testutil.FakeSource{Round: tt.round})

			engine, configs := newTestEngine(t, reader)
			putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

			_, err := engine.Resolve(context.Background(), assetA)
			var invalid *InvalidOracleResponseError
			if !errors.As(err, &invalid) {
				t.Fatalf("got %v, want InvalidOracleResponseError", err)
			}
		})
	}
}

func TestResolveRoundBasedHighDecimals(t *testing.T) {
	// 27-decimal source: answer is scaled down, truncating.
	reader := testutil.NewFakeOracleReader()
	answer, _ := new(big.Int).SetString("1234567890123456789012345678", 10)
	reader.SetSource(sourceA, &testutil.FakeSource{Round: outbound.RoundData{
		RoundID:   big.NewInt(3),
		Answer:    answer,
		UpdatedAt: uint64(testNow.Unix()),
	}})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 27, false)

	price, err := engine.Resolve(context.Background(), assetA)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := wadString(t, "1234567890123456789"); price.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", price, want)
	}
}

// ---------------------------------------------------------------------------
// Index-based resolution
// ---------------------------------------------------------------------------

func TestResolveIndexBased(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	// Raw quote 2500.00000000 at position 2, indexDecimals 0.
	reader.SetSource(sourceB, &testutil.FakeSource{Quotes: []*big.Int{
		big.NewInt(100_000_000),
		big.NewInt(50_000_000),
		big.NewInt(250_000_000_000),
	}})

	engine, configs := newTestEngine(t, reader)
	putIndexConfig(t, configs, assetB, sourceB, 2, 0)

	price, err := engine.Resolve(context.Background(), assetB)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// q * 10^10
	if want := wadString(t, "2500000000000000000000"); price.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", price, want)
	}
}

func TestResolveIndexBasedIndexDecimals(t *testing.T) {
	// indexDecimals=3 shifts the convention: q * 10^18 / 10^5.
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceB, &testutil.FakeSource{Quotes: []*big.Int{big.NewInt(700)}})

	engine, configs := newTestEngine(t, reader)
	putIndexConfig(t, configs, assetB, sourceB, 0, 3)

	price, err := engine.Resolve(context.Background(), assetB)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := wadString(t, "7000000000000000000"); price.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", price, want)
	}
}

func TestResolveIndexBasedOutOfRange(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceB, &testutil.FakeSource{Quotes: []*big.Int{big.NewInt(1)}})

	engine, configs := newTestEngine(t, reader)
	putIndexConfig(t, configs, assetB, sourceB, 5, 0)

	_, err := engine.Resolve(context.Background(), assetB)
	var invalid *InvalidOracleResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOracleResponseError", err)
	}
}

func TestResolveIndexBasedZeroQuote(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceB, &testutil.FakeSource{Quotes: []*big.Int{big.NewInt(0)}})

	engine, configs := newTestEngine(t, reader)
	putIndexConfig(t, configs, assetB, sourceB, 0, 0)

	_, err := engine.Resolve(context.Background(), assetB)
	var invalid *InvalidOracleResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOracleResponseError", err)
	}
}

// ---------------------------------------------------------------------------
// ETH-indexed composition
// ---------------------------------------------------------------------------

func TestResolveEthIndexed(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	// Relative value 1.5 at 18 decimals.
	rel, _ := new(big.Int).SetString("1500000000000000000", 10)
	reader.SetSource(sourceA, &testutil.FakeSource{Round: outbound.RoundData{
		RoundID:   big.NewInt(9),
		Answer:    rel,
		UpdatedAt: uint64(testNow.Unix()),
	}})
	// Base asset at 2000 USD, 8-decimal feed.
	reader.SetSource(sourceEth, &testutil.FakeSource{Round: freshRound(200_000_000_000)})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 18, true)
	putRoundConfig(t, configs, entity.BaseAsset, sourceEth, 4*time.Hour, 8, false)

	price, err := engine.Resolve(context.Background(), assetA)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := wadString(t, "3000000000000000000000"); price.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", price, want)
	}
}

func TestResolveEthIndexedBaseUnconfigured(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: freshRound(100_000_000)})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, true)

	_, err := engine.Resolve(context.Background(), assetA)
	if !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("got %v, want ErrUnknownAsset for the base asset", err)
	}
}

func TestResolveCompositionCycle(t *testing.T) {
	// Misconfiguration: the base asset itself is flagged as ETH-indexed.
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: freshRound(100_000_000)})
	reader.SetSource(sourceEth, &testutil.FakeSource{Round: freshRound(200_000_000_000)})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, true)
	putRoundConfig(t, configs, entity.BaseAsset, sourceEth, time.Hour, 8, true)

	_, err := engine.Resolve(context.Background(), assetA)
	if !errors.Is(err, ErrCompositionCycle) {
		t.Fatalf("got %v, want ErrCompositionCycle", err)
	}
}

// ---------------------------------------------------------------------------
// General engine behavior
// ---------------------------------------------------------------------------

func TestResolveUnknownAsset(t *testing.T) {
	engine, _ := newTestEngine(t, testutil.NewFakeOracleReader())

	_, err := engine.Resolve(context.Background(), assetA)
	if !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("got %v, want ErrUnknownAsset", err)
	}
}

func TestResolveReaderError(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	readErr := errors.New("rpc timeout")
	reader.SetSource(sourceA, &testutil.FakeSource{Err: readErr})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

	_, err := engine.Resolve(context.Background(), assetA)
	if !errors.Is(err, readErr) {
		t.Fatalf("got %v, want wrapped reader error", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: freshRound(123_456_789)})

	engine, configs := newTestEngine(t, reader)
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

	first, err := engine.Resolve(context.Background(), assetA)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := engine.Resolve(context.Background(), assetA)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if first.Cmp(second) != 0 {
		t.Errorf("resolutions differ: %s vs %s", first, second)
	}
	// Every resolution re-queries upstream; there is no caching.
	if reader.CallCount != 2 {
		t.Errorf("reader called %d times, want 2", reader.CallCount)
	}
}

func TestResolveRecordsMetrics(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(sourceA, &testutil.FakeSource{Round: freshRound(100_000_000)})

	recorder := &testutil.MetricsRecorder{}
	configs := memory.NewConfigRepository()
	engine, err := NewEngine(Config{
		Metrics: recorder,
		Now:     func() time.Time { return testNow },
	}, configs, reader)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	putRoundConfig(t, configs, assetA, sourceA, time.Hour, 8, false)

	if _, err := engine.Resolve(context.Background(), assetA); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := engine.Resolve(context.Background(), assetB); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("got %v, want ErrUnknownAsset", err)
	}

	records := recorder.Records()
	if len(records) != 2 {
		t.Fatalf("recorded %d resolutions, want 2", len(records))
	}
	if !records[0].Success || records[0].Kind != "round_based" {
		t.Errorf("first record = %+v, want round_based success", records[0])
	}
	if records[1].Success {
		t.Errorf("second record = %+v, want failure", records[1])
	}
}
