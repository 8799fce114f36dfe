// Package redis provides a Redis implementation of the LastGoodPriceStore port.
//
// Prices are stored as decimal strings under prefix:asset keys. The store is
// reserved state for external consumers; nothing in the resolution path reads
// it back on failure.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/archon-research/pricefeed/internal/ports/outbound"
)

// Compile-time check that LastGoodPriceStore implements outbound.LastGoodPriceStore
var _ outbound.LastGoodPriceStore = (*LastGoodPriceStore)(nil)

// Config holds Redis store configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL is how long a stored price lives before expiring (0 for no expiry)
	TTL time.Duration
	// KeyPrefix is prepended to all keys
	KeyPrefix string
}

// ConfigDefaults returns sensible defaults for the Redis store configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		TTL:       0,
		KeyPrefix: "pricefeed",
	}
}

// LastGoodPriceStore is a Redis implementation of the outbound.LastGoodPriceStore port.
type LastGoodPriceStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewLastGoodPriceStore creates a new Redis last-good price store.
func NewLastGoodPriceStore(cfg Config, logger *slog.Logger) (*LastGoodPriceStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis-lastgood")

	return &LastGoodPriceStore{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

// Ping checks the Redis connection.
func (s *LastGoodPriceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *LastGoodPriceStore) Close() error {
	return s.client.Close()
}

// key generates a store key in the format prefix:lastgood:asset
func (s *LastGoodPriceStore) key(asset common.Address) string {
	return fmt.Sprintf("%s:lastgood:%s", s.keyPrefix, asset.Hex())
}

// SetLastGoodPrice stores the most recent successfully resolved price for an asset.
func (s *LastGoodPriceStore) SetLastGoodPrice(ctx context.Context, asset common.Address, price *big.Int) error {
	if price == nil {
		return fmt.Errorf("price cannot be nil")
	}
	key := s.key(asset)
	if err := s.client.Set(ctx, key, price.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store last good price: %w", err)
	}
	return nil
}

// GetLastGoodPrice returns the stored price for an asset, or ErrPriceNotFound.
func (s *LastGoodPriceStore) GetLastGoodPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	val, err := s.client.Get(ctx, s.key(asset)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, outbound.ErrPriceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last good price: %w", err)
	}

	price, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt stored price %q for %s", val, asset.Hex())
	}
	return price, nil
}
