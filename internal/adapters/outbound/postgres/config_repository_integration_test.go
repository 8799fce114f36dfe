//go:build integration

package postgres

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/archon-research/pricefeed/db/migrator"
	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

type pgTestFixture struct {
	configs *ConfigRepository
	log     *PriceLogRepository
	pool    *pgxpool.Pool
	cleanup func()
}

func setupPostgresTest(t *testing.T) *pgTestFixture {
	t.Helper()
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:17-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		pgcontainer.WithSQLDriver("pgx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pgxpool: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "../../../../db/migrations")
	m := migrator.New(pool, migrationsDir)
	if err := m.ApplyAll(ctx); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	configs, err := NewConfigRepository(pool, nil)
	if err != nil {
		t.Fatalf("failed to create config repository: %v", err)
	}
	log, err := NewPriceLogRepository(pool, nil, 0)
	if err != nil {
		t.Fatalf("failed to create price log repository: %v", err)
	}

	return &pgTestFixture{
		configs: configs,
		log:     log,
		pool:    pool,
		cleanup: func() {
			pool.Close()
			container.Terminate(ctx)
		},
	}
}

func TestConfigRepository_RoundTrip(t *testing.T) {
	f := setupPostgresTest(t)
	defer f.cleanup()
	ctx := context.Background()

	asset := common.HexToAddress("0x1111111111111111111111111111111111111111")
	source := common.HexToAddress("0x2222222222222222222222222222222222222222")

	cfg, err := entity.NewRoundBasedConfig(asset, source, 24*time.Hour, 8, true)
	if err != nil {
		t.Fatalf("NewRoundBasedConfig: %v", err)
	}
	cfg.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := f.configs.PutConfig(ctx, cfg); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}

	got, err := f.configs.GetConfig(ctx, asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got.Asset != asset || got.Source != source {
		t.Errorf("addresses did not round-trip: %+v", got)
	}
	if got.Kind != entity.SourceRoundBased {
		t.Errorf("expected round_based kind, got %s", got.Kind)
	}
	if got.Timeout != 24*time.Hour {
		t.Errorf("expected 24h timeout, got %s", got.Timeout)
	}
	if got.NativeDecimals != 8 {
		t.Errorf("expected 8 native decimals, got %d", got.NativeDecimals)
	}
	if !got.EthIndexed {
		t.Error("expected eth_indexed to round-trip")
	}
}

func TestConfigRepository_NotFound(t *testing.T) {
	f := setupPostgresTest(t)
	defer f.cleanup()

	_, err := f.configs.GetConfig(context.Background(), common.HexToAddress("0xdead"))
	if !errors.Is(err, outbound.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got: %v", err)
	}
}

func TestConfigRepository_ReplacePrior(t *testing.T) {
	f := setupPostgresTest(t)
	defer f.cleanup()
	ctx := context.Background()

	asset := common.HexToAddress("0x1111111111111111111111111111111111111111")
	first, err := entity.NewRoundBasedConfig(asset,
		common.HexToAddress("0x2222222222222222222222222222222222222222"), time.Hour, 8, false)
	if err != nil {
		t.Fatalf("NewRoundBasedConfig: %v", err)
	}
	if err := f.configs.PutConfig(ctx, first); err != nil {
		t.Fatalf("PutConfig first: %v", err)
	}

	second, err := entity.NewIndexBasedConfig(asset,
		common.HexToAddress("0x3333333333333333333333333333333333333333"), 4, 0)
	if err != nil {
		t.Fatalf("NewIndexBasedConfig: %v", err)
	}
	if err := f.configs.PutConfig(ctx, second); err != nil {
		t.Fatalf("PutConfig second: %v", err)
	}

	got, err := f.configs.GetConfig(ctx, asset)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got.Kind != entity.SourceIndexBased {
		t.Errorf("expected replacement to win, got kind %s", got.Kind)
	}
	if got.Index != 4 {
		t.Errorf("expected index 4, got %d", got.Index)
	}

	all, err := f.configs.ListConfigs(ctx)
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 config after replacement, got %d", len(all))
	}
}

func TestPriceLogRepository_AppendAndLatest(t *testing.T) {
	f := setupPostgresTest(t)
	defer f.cleanup()
	ctx := context.Background()

	asset := common.HexToAddress("0x1111111111111111111111111111111111111111")
	base := time.Now().UTC().Truncate(time.Microsecond)

	older, err := entity.NewResolvedPrice(asset, big.NewInt(1980), entity.SourceRoundBased, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("NewResolvedPrice: %v", err)
	}
	// Exceeds uint64 to exercise NUMERIC(78,0) width.
	bigPrice, _ := new(big.Int).SetString("2000000000000000000000", 10)
	newer, err := entity.NewResolvedPrice(asset, bigPrice, entity.SourceRoundBased, base)
	if err != nil {
		t.Fatalf("NewResolvedPrice: %v", err)
	}

	if err := f.log.AppendPrices(ctx, []*entity.ResolvedPrice{older, newer}); err != nil {
		t.Fatalf("AppendPrices: %v", err)
	}

	latest, err := f.log.GetLatestPrices(ctx)
	if err != nil {
		t.Fatalf("GetLatestPrices: %v", err)
	}
	got, ok := latest[asset]
	if !ok {
		t.Fatal("expected a latest price for asset")
	}
	if got.Cmp(bigPrice) != 0 {
		t.Errorf("expected latest price %s, got %s", bigPrice, got)
	}

	var count int
	if err := f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resolved_price`).Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 log rows, got %d", count)
	}
}
