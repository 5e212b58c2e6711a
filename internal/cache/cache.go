// Package cache provides a two-level cache for simulation results: an in-process LRU
// in front of an optional shared Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cxd309/trip-engine/internal/engine"
)

// KeyPrefix namespaces simulation results in Redis.
const KeyPrefix = "trip:cache:simulation:"

// Defaults used when Config leaves a value unset.
const (
	DefaultSize = 128
	DefaultTTL  = time.Hour
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string // empty runs without Redis
	RedisPassword string
	RedisDB       int

	Size int
	TTL  time.Duration

	// DisableOnError turns Redis off after its first failure.
	DisableOnError bool
}

// Cache stores simulation results by input key. Results handed out are shared and
// must be treated as read-only.
type Cache struct {
	local  gcache.Cache
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // circuit breaker state for Redis
}

// New creates a cache. An unreachable Redis is not an error: the cache then runs on
// the local LRU alone.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache{
		local:    gcache.New(cfg.Size).LRU().Expiration(cfg.TTL).Build(),
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   cfg,
		disabled: true,
	}
	if cfg.RedisAddr == "" {
		c.logger.Info().Int("size", cfg.Size).Msg("result cache running without Redis")
		return c, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis cache unavailable, running on local cache only")
		_ = client.Close()
		return c, nil
	}

	c.logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	c.client = client
	c.disabled = false
	return c, nil
}

// Key returns the cache key of input. Inputs that marshal identically share a key.
func Key(input engine.SimulationInput) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the result stored under key, checking the local cache before Redis. A
// Redis hit is copied into the local cache.
func (c *Cache) Get(ctx context.Context, key string) (engine.SimulationResult, bool) {
	if v, err := c.local.Get(key); err == nil {
		if res, ok := v.(engine.SimulationResult); ok {
			return res, true
		}
	}

	if !c.RemoteAvailable() {
		return engine.SimulationResult{}, false
	}

	data, err := c.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.SimulationResult{}, false
	}
	if err != nil {
		c.handleError(err, "get")
		return engine.SimulationResult{}, false
	}

	var res engine.SimulationResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached result")
		return engine.SimulationResult{}, false
	}
	_ = c.local.Set(key, res)
	return res, true
}

// Set stores res under key in both levels.
func (c *Cache) Set(ctx context.Context, key string, res engine.SimulationResult) error {
	if err := c.local.Set(key, res); err != nil {
		return fmt.Errorf("local cache set: %w", err)
	}

	if !c.RemoteAvailable() {
		return nil
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, KeyPrefix+key, data, c.config.TTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// Len returns the number of unexpired results in the local cache.
func (c *Cache) Len() int { return c.local.Len(true) }

// Purge empties the local cache.
func (c *Cache) Purge() { c.local.Purge() }

// RemoteAvailable returns true if Redis is operational.
func (c *Cache) RemoteAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling Redis cache due to error")
	}
}
