package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantlabhq/tradelab/internal/metrics"
)

// RedisTickCache shares recent ticks through Redis so restarts and
// sibling processes reuse fetched prices. All methods are safe on a nil
// receiver, which disables the layer.
type RedisTickCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTickCache creates a Redis tick cache. A nil client yields a
// nil cache (Redis is optional).
func NewRedisTickCache(client *redis.Client, ttl time.Duration) *RedisTickCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisTickCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached tick. Returns false on miss or any Redis error.
func (c *RedisTickCache) Get(ctx context.Context, symbol string) (Tick, bool) {
	if c == nil || c.client == nil {
		return Tick{}, false
	}

	key := c.buildKey(symbol)
	metrics.RecordRedisOperation("get")

	// Short timeout so a slow Redis never stalls the tick path
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
		}
		return Tick{}, false
	}

	var tick Tick
	if err := json.Unmarshal([]byte(cached), &tick); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cached tick")
		return Tick{}, false
	}

	return tick, true
}

// Set stores a tick with the configured TTL.
func (c *RedisTickCache) Set(ctx context.Context, tick Tick) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	key := c.buildKey(tick.Symbol)
	metrics.RecordRedisOperation("set")

	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to cache tick")
		return err
	}

	return nil
}

// SetAsync stores a tick in the background so the caller never blocks
// on a cache write.
func (c *RedisTickCache) SetAsync(tick Tick) {
	if c == nil || c.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Set(ctx, tick)
	}()
}

// Clear removes all cached ticks.
func (c *RedisTickCache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := c.client.Scan(cacheCtx, 0, "tradelab:tick:*", 0).Iterator()
	count := 0
	for iter.Next(cacheCtx) {
		if err := c.client.Del(cacheCtx, iter.Val()).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete cache key")
		} else {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}

	log.Info().
		Int("keys_deleted", count).
		Msg("Cleared tick cache")
	return nil
}

// Health checks the Redis connection.
func (c *RedisTickCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (c *RedisTickCache) buildKey(symbol string) string {
	return fmt.Sprintf("tradelab:tick:%s", symbol)
}
