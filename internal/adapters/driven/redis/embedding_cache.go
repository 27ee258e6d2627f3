package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/coderag-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

const embeddingPrefix = "emb:"

// DefaultEmbeddingTTL keeps entries for a week; re-indexing the same
// snapshot within that window costs nothing in provider calls.
const DefaultEmbeddingTTL = 7 * 24 * time.Hour

// EmbeddingCache implements driven.EmbeddingCache on Redis.
// Keys are content-addressed (SHA-256 of the exact text), so identical
// chunk content across files and runs shares one entry.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewEmbeddingCache creates a new Redis-backed EmbeddingCache.
// A non-positive ttl falls back to DefaultEmbeddingTTL.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

// cacheKey derives the Redis key for a text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or nil on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, error) {
	data, err := c.client.Get(ctx, cacheKey(text)).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		c.misses.Add(1)
		return nil, fmt.Errorf("cache decode: %w", err)
	}

	c.hits.Add(1)
	return vector, nil
}

// Set stores the vector for text with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, text string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(text), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// MGet returns one entry per input text, nil for misses.
func (c *EmbeddingCache) MGet(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = cacheKey(text)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.misses.Add(int64(len(texts)))
		return nil, fmt.Errorf("cache mget: %w", err)
	}

	out := make([][]float32, len(texts))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			c.misses.Add(1)
			continue
		}
		var vector []float32
		if err := json.Unmarshal([]byte(raw), &vector); err != nil {
			c.misses.Add(1)
			continue
		}
		out[i] = vector
		c.hits.Add(1)
	}
	return out, nil
}

// MSet stores vectors for the given texts under one pipeline.
func (c *EmbeddingCache) MSet(ctx context.Context, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("cache mset: %d texts but %d vectors", len(texts), len(vectors))
	}
	if len(texts) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for i, text := range texts {
		data, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("cache encode: %w", err)
		}
		pipe.Set(ctx, cacheKey(text), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache mset: %w", err)
	}
	return nil
}

// Delete removes the entry for text, if present.
func (c *EmbeddingCache) Delete(ctx context.Context, text string) error {
	if err := c.client.Del(ctx, cacheKey(text)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Stats returns the process-wide hit/miss counters.
func (c *EmbeddingCache) Stats() driven.CacheStats {
	return driven.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// ResetStats zeroes the counters.
func (c *EmbeddingCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Ping checks if the Redis backend is healthy.
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
