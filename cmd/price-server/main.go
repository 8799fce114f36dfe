// Package main runs the price resolution server: an HTTP API for resolving
// asset prices and registering oracle configurations, plus a background
// worker that logs price changes for every configured asset.
// All oracle configurations are loaded from the DB; no assets are hardcoded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/archon-research/pricefeed/db/migrator"
	httpadapter "github.com/archon-research/pricefeed/internal/adapters/inbound/http"
	"github.com/archon-research/pricefeed/internal/adapters/outbound/postgres"
	redisadapter "github.com/archon-research/pricefeed/internal/adapters/outbound/redis"
	snsadapter "github.com/archon-research/pricefeed/internal/adapters/outbound/sns"
	"github.com/archon-research/pricefeed/internal/adapters/outbound/telemetry"
	"github.com/archon-research/pricefeed/internal/pkg/blockchain"
	"github.com/archon-research/pricefeed/internal/pkg/blockchain/multicall"
	"github.com/archon-research/pricefeed/internal/pkg/env"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
	"github.com/archon-research/pricefeed/internal/services/price_worker"
	"github.com/archon-research/pricefeed/internal/services/registrar"
	"github.com/archon-research/pricefeed/internal/services/resolver"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	dbURL       string
	rpcURL      string
	addr        string
	healthAddr  string
	interval    time.Duration
	rpcRate     int
	directCalls bool
	migrate     bool
	redisAddr   string
	snsTopicARN string
	adminToken  string
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("price-server", flag.ContinueOnError)
	dbURL := fs.String("db", "", "PostgreSQL connection URL")
	rpcURL := fs.String("rpc", "", "Ethereum JSON-RPC endpoint URL")
	addr := fs.String("addr", "", "API listen address")
	healthAddr := fs.String("health-addr", "", "health probe listen address")
	interval := fs.Duration("interval", 15*time.Second, "price worker resolution interval")
	rpcRate := fs.Int("rpc-rate", 0, "max upstream RPC calls per second (0 = unlimited)")
	directCalls := fs.Bool("direct", false, "use batched eth_call instead of the Multicall3 contract")
	migrate := fs.Bool("migrate", false, "apply database migrations before starting")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		dbURL:       *dbURL,
		rpcURL:      *rpcURL,
		addr:        *addr,
		healthAddr:  *healthAddr,
		interval:    *interval,
		rpcRate:     *rpcRate,
		directCalls: *directCalls,
		migrate:     *migrate,
		redisAddr:   env.Get("REDIS_ADDR", ""),
		snsTopicARN: env.Get("SNS_TOPIC_ARN", ""),
		adminToken:  env.Get("ADMIN_TOKEN", ""),
	}

	if cfg.dbURL == "" {
		cfg.dbURL = env.Get("DATABASE_URL", "")
	}
	if cfg.dbURL == "" {
		return cliConfig{}, fmt.Errorf("database URL not provided (use -db flag or DATABASE_URL env var)")
	}

	if cfg.rpcURL == "" {
		cfg.rpcURL = env.Get("ETH_RPC_URL", "")
	}
	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("RPC URL not provided (use -rpc flag or ETH_RPC_URL env var)")
	}

	if cfg.addr == "" {
		cfg.addr = env.Get("HTTP_ADDR", ":8080")
	}
	if cfg.healthAddr == "" {
		cfg.healthAddr = env.Get("HEALTH_ADDR", ":8081")
	}

	return cfg, nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	logger.Info("starting price server", "addr", cfg.addr)

	// Telemetry
	if endpoint := env.Get("JAEGER_ENDPOINT", ""); endpoint != "" {
		shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
			ServiceName:    "price-server",
			ServiceVersion: env.Get("SERVICE_VERSION", "0.1.0"),
			Environment:    env.Get("ENVIRONMENT", "development"),
			JaegerEndpoint: endpoint,
		})
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer shutdownTracer(context.Background())
	}

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:    "price-server",
		ServiceVersion: env.Get("SERVICE_VERSION", "0.1.0"),
		Environment:    env.Get("ENVIRONMENT", "development"),
		OTLPEndpoint:   env.Get("OTLP_ENDPOINT", ""),
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())

	metrics, err := telemetry.NewMetrics("pricefeed")
	if err != nil {
		return fmt.Errorf("creating metrics recorder: %w", err)
	}

	// Storage
	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.dbURL))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	if cfg.migrate {
		m := migrator.New(pool, env.Get("MIGRATIONS_DIR", "./db/migrations"))
		if err := m.ApplyAll(ctx); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	configs, err := postgres.NewConfigRepository(pool, logger)
	if err != nil {
		return fmt.Errorf("creating config repository: %w", err)
	}
	priceLog, err := postgres.NewPriceLogRepository(pool, logger, 0)
	if err != nil {
		return fmt.Errorf("creating price log repository: %w", err)
	}

	var lastGood outbound.LastGoodPriceStore
	if cfg.redisAddr != "" {
		store, err := redisadapter.NewLastGoodPriceStore(redisadapter.Config{
			Addr:      cfg.redisAddr,
			Password:  env.Get("REDIS_PASSWORD", ""),
			KeyPrefix: env.Get("REDIS_KEY_PREFIX", "pricefeed"),
		}, logger)
		if err != nil {
			return fmt.Errorf("creating last good price store: %w", err)
		}
		defer store.Close()
		lastGood = store
		logger.Info("Redis connected", "addr", cfg.redisAddr)
	}

	var events outbound.EventSink
	if cfg.snsTopicARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(env.Get("AWS_REGION", "eu-west-1")),
		)
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		sink, err := snsadapter.NewEventSink(awssns.NewFromConfig(awsCfg), snsadapter.Config{
			TopicARN: cfg.snsTopicARN,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("creating event sink: %w", err)
		}
		defer sink.Close()
		events = sink
	}

	// Chain access
	var mc outbound.Multicaller
	if cfg.directCalls {
		rpcClient, err := rpc.DialContext(ctx, cfg.rpcURL)
		if err != nil {
			return fmt.Errorf("connecting to Ethereum node: %w", err)
		}
		defer rpcClient.Close()
		mc = multicall.NewDirectCaller(rpcClient)
	} else {
		ethClient, err := ethclient.Dial(cfg.rpcURL)
		if err != nil {
			return fmt.Errorf("connecting to Ethereum node: %w", err)
		}
		defer ethClient.Close()
		mc, err = multicall.NewClient(ethClient, blockchain.Multicall3, cfg.rpcRate)
		if err != nil {
			return fmt.Errorf("creating multicall client: %w", err)
		}
	}
	logger.Info("Ethereum node connected")
	reader, err := blockchain.NewReader(mc, logger)
	if err != nil {
		return fmt.Errorf("creating oracle reader: %w", err)
	}

	// Services
	engine, err := resolver.NewEngine(resolver.Config{
		Logger:  logger,
		Metrics: metrics,
	}, configs, reader)
	if err != nil {
		return fmt.Errorf("creating resolution engine: %w", err)
	}

	admin, err := registrar.NewService(registrar.Config{
		Logger: logger,
		Events: events,
	}, configs, reader, engine)
	if err != nil {
		return fmt.Errorf("creating registrar: %w", err)
	}

	worker, err := price_worker.NewService(price_worker.Config{
		Interval: cfg.interval,
		Logger:   logger,
	}, configs, engine, priceLog, lastGood)
	if err != nil {
		return fmt.Errorf("creating price worker: %w", err)
	}
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("starting price worker: %w", err)
	}

	// HTTP surfaces
	handler := httpadapter.NewHandler(engine, admin, cfg.adminToken, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	apiServer := &http.Server{
		Addr:         cfg.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("API server listening", "addr", cfg.addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", "error", err)
		}
	}()

	var shuttingDown atomic.Bool
	healthServer := httpadapter.NewHealthServer(httpadapter.HealthServerConfig{
		Addr:   cfg.healthAddr,
		Logger: logger,
	}, worker, &shuttingDown)
	healthServer.Start()

	// Block until context is cancelled.
	<-ctx.Done()
	logger.Info("shutting down...")
	shuttingDown.Store(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down API server", "error", err)
	}
	if err := healthServer.Shutdown(5 * time.Second); err != nil {
		logger.Error("error shutting down health server", "error", err)
	}
	if err := worker.Stop(); err != nil {
		logger.Error("error stopping price worker", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
