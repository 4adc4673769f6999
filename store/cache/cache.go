// Package cache memoizes workflow results in Redis, keyed by the reviewed
// phrase and its catalog context. Identical temperature-0 runs are
// deterministic, so a hit skips the whole retrieval-and-generation loop.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/review"
)

// Config holds Redis configuration for the judgment cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Cache is a Redis-backed result cache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a judgment cache.
func New(config *Config) *Cache {
	if config == nil {
		config = &Config{}
	}
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.Prefix == "" {
		config.Prefix = "compliance:judgment:"
	}
	if config.TTL == 0 {
		config.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &Cache{client: client, prefix: config.Prefix, ttl: config.TTL}
}

// Key derives the cache key for a request.
func (c *Cache) Key(req review.Request) string {
	sum := sha256.Sum256([]byte(req.Phrase + "\x00" + req.Category + "\x00" + req.BroadcastType))
	return c.prefix + hex.EncodeToString(sum[:16])
}

// Get returns the cached result for a request, or nil on a miss. Cache
// failures are reported as a miss with an error so callers can fall through
// to a fresh run.
func (c *Cache) Get(ctx context.Context, req review.Request) (*review.Result, error) {
	raw, err := c.client.Get(ctx, c.Key(req)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read judgment cache: %w", err)
	}

	var result review.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Set stores a result for a request.
func (c *Cache) Set(ctx context.Context, req review.Request, result *review.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(req), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write judgment cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached result for a request.
func (c *Cache) Invalidate(ctx context.Context, req review.Request) error {
	return c.client.Del(ctx, c.Key(req)).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
