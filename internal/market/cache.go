package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlabhq/tradelab/internal/metrics"
)

// DefaultCacheTTL bounds how often the upstream API is hit.
const DefaultCacheTTL = 2 * time.Second

// CachedSource wraps a Source with a short in-process TTL cache and an
// optional Redis read-through layer. On upstream failure the last known
// tick is served regardless of age; an error is returned only when no
// tick has ever been fetched.
type CachedSource struct {
	source Source
	redis  *RedisTickCache
	ttl    time.Duration
	log    zerolog.Logger

	mu      sync.Mutex
	last    Tick
	lastAt  time.Time
	hasLast bool
}

// NewCachedSource wraps source. A nil redis cache disables the Redis layer.
func NewCachedSource(source Source, redis *RedisTickCache, ttl time.Duration, log zerolog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		source: source,
		redis:  redis,
		ttl:    ttl,
		log:    log.With().Str("component", "market_cache").Logger(),
	}
}

// Symbol returns the wrapped source's product identifier.
func (c *CachedSource) Symbol() string {
	return c.source.Symbol()
}

// Current returns the cached tick when fresh, otherwise fetches a new one.
func (c *CachedSource) Current(ctx context.Context) (Tick, error) {
	c.mu.Lock()
	if c.hasLast && time.Since(c.lastAt) < c.ttl {
		tick := c.last
		c.mu.Unlock()
		metrics.RecordCacheHit()
		return tick, nil
	}
	c.mu.Unlock()
	metrics.RecordCacheMiss()

	// Redis entries expire at the shared TTL, so any hit is fresh enough.
	if tick, ok := c.redis.Get(ctx, c.source.Symbol()); ok {
		c.store(tick)
		return tick, nil
	}

	tick, err := c.source.Current(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.hasLast {
			c.log.Warn().
				Err(err).
				Time("cached_at", c.lastAt).
				Msg("Fetch failed, serving stale tick")
			return c.last, nil
		}
		return Tick{}, err
	}

	c.store(tick)
	c.redis.SetAsync(tick)
	return tick, nil
}

func (c *CachedSource) store(tick Tick) {
	c.mu.Lock()
	c.last = tick
	c.lastAt = time.Now()
	c.hasLast = true
	c.mu.Unlock()
}

// Last returns the most recent tick without touching the network.
func (c *CachedSource) Last() (Tick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}
