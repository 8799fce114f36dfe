// Package main implements a one-shot price resolution CLI for ad-hoc checks
// against live oracle contracts. The oracle configuration is built from
// flags in an in-memory registry, so no database is needed.
//
// Examples:
//
//	price-resolve -rpc $ETH_RPC_URL -asset 0x... -source 0x... -kind round
//	price-resolve -rpc $ETH_RPC_URL -asset 0x... -source 0x... -kind index -index 3
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/archon-research/pricefeed/internal/adapters/outbound/memory"
	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/pkg/blockchain"
	"github.com/archon-research/pricefeed/internal/pkg/blockchain/multicall"
	"github.com/archon-research/pricefeed/internal/pkg/env"
	"github.com/archon-research/pricefeed/internal/pkg/wad"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
	"github.com/archon-research/pricefeed/internal/services/resolver"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	rpcURL        string
	asset         common.Address
	source        common.Address
	kind          entity.SourceKind
	timeout       time.Duration
	index         int
	indexDecimals uint8
	ethIndexed    bool
	baseSource    common.Address
	directCalls   bool
}

func parseConfig(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("price-resolve", flag.ContinueOnError)
	rpcURL := fs.String("rpc", "", "Ethereum JSON-RPC endpoint URL")
	asset := fs.String("asset", "", "asset address to resolve")
	source := fs.String("source", "", "oracle source contract address")
	kind := fs.String("kind", "round", "oracle kind: round or index")
	timeout := fs.Duration("timeout", 24*time.Hour, "staleness timeout for round-based sources")
	index := fs.Int("index", 0, "quote position for index-based sources")
	indexDecimals := fs.Int("index-decimals", 0, "decimal shift for index-based sources (0-8)")
	ethIndexed := fs.Bool("eth-indexed", false, "treat the source value as relative to the base asset")
	baseSource := fs.String("base-source", "", "round-based oracle for the base asset (required with -eth-indexed)")
	directCalls := fs.Bool("direct", false, "use batched eth_call instead of the Multicall3 contract")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := cliConfig{
		rpcURL:      *rpcURL,
		timeout:     *timeout,
		index:       *index,
		ethIndexed:  *ethIndexed,
		directCalls: *directCalls,
	}

	if cfg.rpcURL == "" {
		cfg.rpcURL = env.Get("ETH_RPC_URL", "")
	}
	if cfg.rpcURL == "" {
		return cliConfig{}, fmt.Errorf("RPC URL not provided (use -rpc flag or ETH_RPC_URL env var)")
	}

	if !common.IsHexAddress(*asset) {
		return cliConfig{}, fmt.Errorf("invalid asset address: %q", *asset)
	}
	cfg.asset = common.HexToAddress(*asset)

	if !common.IsHexAddress(*source) {
		return cliConfig{}, fmt.Errorf("invalid source address: %q", *source)
	}
	cfg.source = common.HexToAddress(*source)

	switch *kind {
	case "round":
		cfg.kind = entity.SourceRoundBased
	case "index":
		cfg.kind = entity.SourceIndexBased
	default:
		return cliConfig{}, fmt.Errorf("unknown kind %q (want round or index)", *kind)
	}

	if *indexDecimals < 0 || *indexDecimals > int(entity.SpotQuoteDecimals) {
		return cliConfig{}, fmt.Errorf("index-decimals must be between 0 and %d", entity.SpotQuoteDecimals)
	}
	cfg.indexDecimals = uint8(*indexDecimals)

	if cfg.ethIndexed {
		if !common.IsHexAddress(*baseSource) {
			return cliConfig{}, fmt.Errorf("-eth-indexed requires a valid -base-source address")
		}
		cfg.baseSource = common.HexToAddress(*baseSource)
	}

	return cfg, nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelWarn),
	}))

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
		mc, err = multicall.NewClient(ethClient, blockchain.Multicall3, 0)
		if err != nil {
			return fmt.Errorf("creating multicall client: %w", err)
		}
	}
	reader, err := blockchain.NewReader(mc, logger)
	if err != nil {
		return fmt.Errorf("creating oracle reader: %w", err)
	}

	configs := memory.NewConfigRepository()
	if err := seedConfigs(ctx, cfg, reader, configs); err != nil {
		return err
	}

	engine, err := resolver.NewEngine(resolver.Config{Logger: logger}, configs, reader)
	if err != nil {
		return fmt.Errorf("creating resolution engine: %w", err)
	}

	price, err := engine.Resolve(ctx, cfg.asset)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", cfg.asset.Hex(), err)
	}

	fmt.Printf("asset:    %s\n", cfg.asset.Hex())
	fmt.Printf("priceWad: %s\n", price)
	fmt.Printf("price:    %s\n", formatWad(price))
	return nil
}

// seedConfigs builds the in-memory registry from flags, probing decimals for
// round-based sources the same way registration does.
func seedConfigs(ctx context.Context, cfg cliConfig, reader *blockchain.Reader, configs *memory.ConfigRepository) error {
	switch cfg.kind {
	case entity.SourceRoundBased:
		decimals, err := reader.Decimals(ctx, cfg.source)
		if err != nil {
			return fmt.Errorf("probing decimals of %s: %w", cfg.source.Hex(), err)
		}
		oc, err := entity.NewRoundBasedConfig(cfg.asset, cfg.source, cfg.timeout, decimals, cfg.ethIndexed)
		if err != nil {
			return err
		}
		if err := configs.PutConfig(ctx, oc); err != nil {
			return err
		}
	case entity.SourceIndexBased:
		oc, err := entity.NewIndexBasedConfig(cfg.asset, cfg.source, cfg.index, cfg.indexDecimals)
		if err != nil {
			return err
		}
		if err := configs.PutConfig(ctx, oc); err != nil {
			return err
		}
	}

	if cfg.ethIndexed {
		decimals, err := reader.Decimals(ctx, cfg.baseSource)
		if err != nil {
			return fmt.Errorf("probing decimals of base source %s: %w", cfg.baseSource.Hex(), err)
		}
		base, err := entity.NewRoundBasedConfig(entity.BaseAsset, cfg.baseSource, cfg.timeout, decimals, false)
		if err != nil {
			return err
		}
		if err := configs.PutConfig(ctx, base); err != nil {
			return err
		}
	}
	return nil
}

// formatWad renders an 18-decimal fixed-point value as a decimal string.
func formatWad(v *big.Int) string {
	quo, rem := new(big.Int).QuoRem(v, wad.One(), new(big.Int))
	return fmt.Sprintf("%s.%018s", quo, rem)
}
