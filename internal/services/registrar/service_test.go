package registrar

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
	"github.com/archon-research/pricefeed/internal/services/resolver"
	"github.com/archon-research/pricefeed/internal/testutil"
)

var (
	asset  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	source = common.HexToAddress("0x0000000000000000000000000000000000000A01")
)

var testNow = time.Unix(1_760_000_000, 0).UTC()

func newTestService(t *testing.T, reader outbound.OracleReader) (*Service, *memory.ConfigRepository, *memory.EventSink) {
	t.Helper()
	configs := memory.NewConfigRepository()
	engine, err := resolver.NewEngine(resolver.Config{Now: func() time.Time { return testNow }}, configs, reader)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	events := memory.NewEventSink()
	svc, err := NewService(Config{
		Events: events,
		Now:    func() time.Time { return testNow },
	}, configs, reader, engine)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, configs, events
}

func liveRoundSource(decimals uint8, answer int64) *testutil.FakeSource {
	return &testutil.FakeSource{
		Decimals: decimals,
		Round: outbound.RoundData{
			RoundID:   big.NewInt(100),
			Answer:    big.NewInt(answer),
			UpdatedAt: uint64(testNow.Unix() - 30),
		},
	}
}

func TestRegisterRoundBasedOracle(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, liveRoundSource(8, 200_000_000_000))

	svc, configs, events := newTestService(t, reader)

	if err := svc.RegisterRoundBasedOracle(context.Background(), asset, source, 4*time.Hour, false); err != nil {
		t.Fatalf("RegisterRoundBasedOracle: %v", err)
	}

	cfg, err := configs.GetConfig(context.Background(), asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Kind != entity.SourceRoundBased {
		t.Errorf("kind = %s, want round_based", cfg.Kind)
	}
	if cfg.NativeDecimals != 8 {
		t.Errorf("nativeDecimals = %d, want 8 (probed from source)", cfg.NativeDecimals)
	}
	if cfg.Timeout != 4*time.Hour {
		t.Errorf("timeout = %s, want 4h", cfg.Timeout)
	}

	changed := events.GetConfigChangedEvents()
	if len(changed) != 1 {
		t.Fatalf("published %d events, want 1", len(changed))
	}
	if changed[0].Asset != asset || changed[0].Kind != "round_based" {
		t.Errorf("event = %+v", changed[0])
	}
}

func TestRegisterRoundBasedOracleZeroDecimals(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, liveRoundSource(0, 200_000_000_000))

	svc, configs, _ := newTestService(t, reader)

	err := svc.RegisterRoundBasedOracle(context.Background(), asset, source, time.Hour, false)
	if !errors.Is(err, resolver.ErrInvalidConfiguration) {
		t.Fatalf("got %v, want ErrInvalidConfiguration", err)
	}
	if _, err := configs.GetConfig(context.Background(), asset); !errors.Is(err, outbound.ErrConfigNotFound) {
		t.Errorf("registry should remain empty after rejected registration")
	}
}

func TestRegisterRoundBasedOracleDeadSource(t *testing.T) {
	// A source whose trial resolution yields zero must not be committed,
	// and the previous configuration must survive.
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, liveRoundSource(8, 200_000_000_000))

	svc, configs, _ := newTestService(t, reader)

	if err := svc.RegisterRoundBasedOracle(context.Background(), asset, source, time.Hour, false); err != nil {
		t.Fatalf("initial registration: %v", err)
	}

	deadSource := common.HexToAddress("0x0000000000000000000000000000000000000DEA")
	reader.SetSource(deadSource, &testutil.FakeSource{
		Decimals: 8,
		Round: outbound.RoundData{
			RoundID:   big.NewInt(0), // never completed a round
			Answer:    big.NewInt(0),
			UpdatedAt: 0,
		},
	})

	err := svc.RegisterRoundBasedOracle(context.Background(), asset, deadSource, time.Hour, false)
	var invalid *resolver.InvalidOracleResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOracleResponseError", err)
	}

	cfg, err := configs.GetConfig(context.Background(), asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Source != source {
		t.Errorf("prior configuration replaced: source = %s, want %s", cfg.Source.Hex(), source.Hex())
	}
}

func TestRegisterRoundBasedOracleReplacesPrior(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, liveRoundSource(8, 200_000_000_000))

	other := common.HexToAddress("0x0000000000000000000000000000000000000A02")
	reader.SetSource(other, liveRoundSource(18, 2_000_000_000_000_000_000))

	svc, configs, _ := newTestService(t, reader)

	if err := svc.RegisterRoundBasedOracle(context.Background(), asset, source, time.Hour, false); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := svc.RegisterRoundBasedOracle(context.Background(), asset, other, 2*time.Hour, false); err != nil {
		t.Fatalf("second registration: %v", err)
	}

	cfg, err := configs.GetConfig(context.Background(), asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Source != other || cfg.NativeDecimals != 18 {
		t.Errorf("last write should win: %+v", cfg)
	}
}

func TestRegisterIndexBasedOracle(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, &testutil.FakeSource{
		Quotes: []*big.Int{big.NewInt(100_000_000), big.NewInt(250_000_000_000)},
	})

	svc, configs, events := newTestService(t, reader)

	if err := svc.RegisterIndexBasedOracle(context.Background(), asset, source, 1, 0); err != nil {
		t.Fatalf("RegisterIndexBasedOracle: %v", err)
	}

	cfg, err := configs.GetConfig(context.Background(), asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Kind != entity.SourceIndexBased {
		t.Errorf("kind = %s, want index_based", cfg.Kind)
	}
	if cfg.Timeout != entity.DefaultIndexTimeout {
		t.Errorf("timeout = %s, want fixed %s", cfg.Timeout, entity.DefaultIndexTimeout)
	}
	if cfg.EthIndexed {
		t.Errorf("index-based configurations are always absolute")
	}
	if len(events.GetConfigChangedEvents()) != 1 {
		t.Errorf("expected one config change event")
	}
}

func TestRegisterIndexBasedOracleOutOfRange(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	reader.SetSource(source, &testutil.FakeSource{Quotes: []*big.Int{big.NewInt(1)}})

	svc, configs, _ := newTestService(t, reader)

	err := svc.RegisterIndexBasedOracle(context.Background(), asset, source, 3, 0)
	var invalid *resolver.InvalidOracleResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOracleResponseError", err)
	}
	if _, err := configs.GetConfig(context.Background(), asset); !errors.Is(err, outbound.ErrConfigNotFound) {
		t.Errorf("registry should remain empty after rejected registration")
	}
}

func TestRegisterIndexBasedOracleBadIndexDecimals(t *testing.T) {
	reader := testutil.NewFakeOracleReader()
	svc, _, _ := newTestService(t, reader)

	err := svc.RegisterIndexBasedOracle(context.Background(), asset, source, 0, 9)
	if !errors.Is(err, resolver.ErrInvalidConfiguration) {
		t.Fatalf("got %v, want ErrInvalidConfiguration", err)
	}
}
