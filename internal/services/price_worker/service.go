// Package price_worker provides a periodic loop that resolves every
// configured asset, appends changed prices to the price log, and keeps the
// last-good price slot current. All configurations are loaded from the
// registry; no asset list is hardcoded.
package price_worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/pricefeed/internal/domain/entity"
	"github.com/archon-research/pricefeed/internal/ports/inbound"
	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Config holds configuration for the price worker.
type Config struct {
	Interval time.Duration
	Logger   *slog.Logger

	// Now overrides the record clock; nil means time.Now.
	Now func() time.Time
}

func configDefaults() Config {
	return Config{
		Interval: 15 * time.Second,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

// Service periodically resolves all configured assets.
type Service struct {
	config   Config
	configs  outbound.ConfigRepository
	resolver inbound.PriceResolver
	log      outbound.PriceLogRepository
	lastGood outbound.LastGoodPriceStore

	// priceCache holds the last logged price per asset for change detection.
	priceCache map[common.Address]*big.Int

	firstCycleDone atomic.Bool
	lastCycleUnix  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// Compile-time check that Service implements inbound.HealthChecker.
var _ inbound.HealthChecker = (*Service)(nil)

// NewService creates a price worker. lastGood may be nil to disable the
// last-good slot.
func NewService(
	config Config,
	configs outbound.ConfigRepository,
	resolver inbound.PriceResolver,
	log outbound.PriceLogRepository,
	lastGood outbound.LastGoodPriceStore,
) (*Service, error) {
	if configs == nil {
		return nil, fmt.Errorf("config repository cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("price log cannot be nil")
	}

	defaults := configDefaults()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}

	return &Service{
		config:     config,
		configs:    configs,
		resolver:   resolver,
		log:        log,
		lastGood:   lastGood,
		priceCache: make(map[common.Address]*big.Int),
		logger:     config.Logger.With("component", "price-worker"),
	}, nil
}

// Start seeds the change-detection cache from the price log and begins the
// resolution loop.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	cached, err := s.log.GetLatestPrices(s.ctx)
	if err != nil {
		return fmt.Errorf("loading latest prices: %w", err)
	}
	s.priceCache = cached
	if s.priceCache == nil {
		s.priceCache = make(map[common.Address]*big.Int)
	}

	go s.runLoop()

	s.logger.Info("price worker started",
		"interval", s.config.Interval,
		"cachedPrices", len(cached))
	return nil
}

// Stop stops the service.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("price worker stopped")
	return nil
}

func (s *Service) runLoop() {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.ResolveAll(s.ctx); err != nil {
				s.logger.Error("error resolving prices", "error", err)
			}
			s.firstCycleDone.Store(true)
			s.lastCycleUnix.Store(time.Now().Unix())
		}
	}
}

// ResolveAll resolves every configured asset once and persists changes.
func (s *Service) ResolveAll(ctx context.Context) error {
	cfgs, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("listing configs: %w", err)
	}

	var changed []*entity.ResolvedPrice
	var errs []error
	for _, cfg := range cfgs {
		price, err := s.resolver.Resolve(ctx, cfg.Asset)
		if err != nil {
			s.logger.Warn("resolution failed",
				"asset", cfg.Asset.Hex(),
				"kind", cfg.Kind.String(),
				"error", err)
			errs = append(errs, fmt.Errorf("asset %s: %w", cfg.Asset.Hex(), err))
			continue
		}

		if cached, ok := s.priceCache[cfg.Asset]; ok && cached.Cmp(price) == 0 {
			continue
		}

		record, err := entity.NewResolvedPrice(cfg.Asset, price, cfg.Kind, s.config.Now().UTC())
		if err != nil {
			s.logger.Error("invalid price record", "asset", cfg.Asset.Hex(), "error", err)
			continue
		}
		changed = append(changed, record)
		s.priceCache[cfg.Asset] = new(big.Int).Set(price)
	}

	if len(changed) > 0 {
		if err := s.log.AppendPrices(ctx, changed); err != nil {
			return fmt.Errorf("appending prices: %w", err)
		}
		s.updateLastGood(ctx, changed)
		s.logger.Info("logged resolved prices",
			"changed", len(changed),
			"total", len(cfgs))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsReady reports whether the first resolution cycle has completed.
func (s *Service) IsReady() bool {
	return s.firstCycleDone.Load()
}

// IsHealthy reports whether a cycle ran recently. Before the first cycle the
// worker counts as healthy so it has time to warm up.
func (s *Service) IsHealthy() bool {
	if !s.firstCycleDone.Load() {
		return true
	}
	last := time.Unix(s.lastCycleUnix.Load(), 0)
	return time.Since(last) < 3*s.config.Interval
}

func (s *Service) updateLastGood(ctx context.Context, prices []*entity.ResolvedPrice) {
	if s.lastGood == nil {
		return
	}
	for _, p := range prices {
		if err := s.lastGood.SetLastGoodPrice(ctx, p.Asset, p.PriceWad); err != nil {
			s.logger.Error("failed to update last good price",
				"asset", p.Asset.Hex(), "error", err)
		}
	}
}
