// Package registrar implements the administrative registration surface:
// validate-before-commit registration of per-asset oracle configurations.
// A registration either fully succeeds with a provably live price, or is
// rejected with the previous configuration retained unchanged.
package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
	"github.com/archon-research/pricefeed/internal/services/resolver"
)

// Config holds optional registrar dependencies.
type Config struct {
	Logger *slog.Logger

	// Events receives a ConfigChangedEvent after each commit; nil
	// disables event emission.
	Events outbound.EventSink

	// Now overrides the event clock; nil means time.Now.
	Now func() time.Time
}

// Service registers oracle configurations.
type Service struct {
	configs outbound.ConfigRepository
	reader  outbound.OracleReader
	engine  *resolver.Engine
	events  outbound.EventSink
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a registration service. The engine performs the trial
// resolution that gates every commit.
func NewService(cfg Config, configs outbound.ConfigRepository, reader outbound.OracleReader, engine *resolver.Engine) (*Service, error) {
	if configs == nil {
		return nil, fmt.Errorf("config repository cannot be nil")
	}
	if reader == nil {
		return nil, fmt.Errorf("oracle reader cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("resolver engine cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		configs: configs,
		reader:  reader,
		engine:  engine,
		events:  cfg.Events,
		logger:  cfg.Logger.With("component", "registrar"),
		now:     cfg.Now,
	}, nil
}

// RegisterRoundBasedOracle probes the source's decimals, trial-resolves a
// candidate configuration, and commits it only if the trial produced a
// non-zero price.
func (s *Service) RegisterRoundBasedOracle(ctx context.Context, asset, source common.Address, timeout time.Duration, ethIndexed bool) error {
	decimals, err := s.reader.Decimals(ctx, source)
	if err != nil {
		return fmt.Errorf("probing decimals of %s: %w", source.Hex(), err)
	}
	if decimals == 0 {
		return fmt.Errorf("%w: source %s reports zero decimals", resolver.ErrInvalidConfiguration, source.Hex())
	}

	cfg, err := entity.NewRoundBasedConfig(asset, source, timeout, decimals, ethIndexed)
	if err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrInvalidConfiguration, err)
	}

	return s.trialAndCommit(ctx, cfg)
}

// RegisterIndexBasedOracle trial-resolves an index-based candidate and
// commits it. The timeout is fixed at one hour and the value is absolute.
func (s *Service) RegisterIndexBasedOracle(ctx context.Context, asset, source common.Address, index int, indexDecimals uint8) error {
	cfg, err := entity.NewIndexBasedConfig(asset, source, index, indexDecimals)
	if err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrInvalidConfiguration, err)
	}

	return s.trialAndCommit(ctx, cfg)
}

func (s *Service) trialAndCommit(ctx context.Context, cfg *entity.OracleConfig) error {
	price, err := s.engine.TrialResolve(ctx, cfg)
	if err != nil {
		return fmt.Errorf("trial resolution for %s: %w", cfg.Asset.Hex(), err)
	}

	cfg.UpdatedAt = s.now().UTC()
	if err := s.configs.PutConfig(ctx, cfg); err != nil {
		return fmt.Errorf("committing config for %s: %w", cfg.Asset.Hex(), err)
	}

	s.logger.Info("oracle configuration committed",
		"asset", cfg.Asset.Hex(),
		"source", cfg.Source.Hex(),
		"kind", cfg.Kind.String(),
		"trialPrice", price.String())

	if s.events != nil {
		event := outbound.NewConfigChangedEvent(cfg, s.now().UTC())
		if err := s.events.Publish(ctx, event); err != nil {
			// Event emission is observability only; the commit stands.
			s.logger.Error("failed to publish config change event",
				"asset", cfg.Asset.Hex(), "error", err)
		}
	}

	return nil
}
