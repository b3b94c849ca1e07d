// Package kv wraps go-redis into the typed KV operations every other
// platform package builds on: caching, rate limiting, queueing, and
// pub/sub notification (§4.1, §4.2, §4.8, §6.7). Every caller goes through
// this client rather than touching *redis.Client directly, so the KV
// namespace (§6.7) has exactly one source of truth.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a thin, typed wrapper around a go-redis connection.
type Client struct {
	rdb *redis.Client
}

// Config configures the underlying connection pool.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New opens a connection pool and verifies it with a PING.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 50
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an already-constructed *redis.Client, mainly useful
// in tests against miniredis-style fakes.
func NewFromClient(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Close releases the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Raw exposes the underlying client for operations this wrapper doesn't
// cover (used sparingly: by the ingestion queue for LLEN/RPUSH/LPOP-count
// and by the rate limiter for pipelined INCR/EXPIRE).
func (c *Client) Raw() *redis.Client { return c.rdb }

// Get returns the raw bytes stored at key, or redis.Nil if absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value at key with an optional TTL (0 = no expiry).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes exactly the given keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// TTL returns the remaining time-to-live for key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.TTL(ctx, key).Result()
}

// BatchGet performs a single MGET across keys.
func (c *Client) BatchGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

// BatchSet writes every key/value in items in a single pipeline, each with
// the same TTL.
func (c *Client) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for k, v := range items {
		pipe.Set(ctx, k, v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ScanKeys returns every key matching pattern using a non-blocking cursor
// scan (never KEYS, which blocks the server under load).
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// DeletePattern scans for keys matching pattern and deletes exactly those
// keys. Narrower than a wildcard FLUSHDB-style op, but still a multi-key
// operation — callers that can name the exact key should prefer Delete
// (see internal/platform/apikeycache's resolution of the RevokeApiKey
// over-invalidation question in DESIGN.md).
func (c *Client) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := c.ScanKeys(ctx, pattern)
	if err != nil {
		return err
	}
	return c.Delete(ctx, keys...)
}

// Publish publishes payload on channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to channel and returns the go-redis PubSub handle;
// callers must Close() it.
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channel)
}
