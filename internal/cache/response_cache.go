// Package cache provides an optional Redis-backed cache for complete
// pipeline answers, sitting above internal/llmgateway's per-call SQLite
// cache: where that cache deduplicates individual embed/complete/rerank
// calls, ResponseCache deduplicates the whole Controller.Ask round trip
// for a repeated question, which matters most for the frequently-repeated
// single-entity date/fee/eligibility questions this corpus sees at scale.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/circularqa/coreqa/internal/models"
)

// ResponseCache caches models.Response values keyed on the normalized
// question text. It degrades to a no-op when Redis is unreachable at
// construction time — an unavailable cache must never block answering.
type ResponseCache struct {
	client  *RedisClient
	enabled bool
	ttl     time.Duration
}

// NewResponseCache connects to addr/db and pings it once; if the ping
// fails, the returned cache is disabled (Get always misses, Set always
// no-ops) rather than returning an error, since caching is an optimization
// the pipeline must be able to run without.
func NewResponseCache(addr string, db int, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	client := NewRedisClient(addr, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return &ResponseCache{enabled: false, ttl: ttl}
	}
	return &ResponseCache{client: client, enabled: true, ttl: ttl}
}

// IsEnabled reports whether the backing Redis connection is live.
func (c *ResponseCache) IsEnabled() bool {
	return c.enabled
}

// Get returns the cached response for question, if present.
func (c *ResponseCache) Get(ctx context.Context, question string) (models.Response, bool) {
	if !c.enabled {
		return models.Response{}, false
	}
	var resp models.Response
	err := c.client.Get(ctx, responseKey(question), &resp)
	if errors.Is(err, redis.Nil) || err != nil {
		return models.Response{}, false
	}
	return resp, true
}

// Set stores resp under question's cache key. NotFound responses get a
// shorter TTL since a not-found corpus gap is often filled shortly after
// being noticed, and re-serving a stale not-found for the full TTL would
// mask that.
func (c *ResponseCache) Set(ctx context.Context, question string, resp models.Response) error {
	if !c.enabled {
		return nil
	}
	ttl := c.ttl
	if resp.NotFound {
		ttl = 5 * time.Minute
	}
	return c.client.Set(ctx, responseKey(question), resp, ttl)
}

// Close releases the underlying Redis connection, if any.
func (c *ResponseCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func responseKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return fmt.Sprintf("coreqa:response:%s", hex.EncodeToString(sum[:]))
}
