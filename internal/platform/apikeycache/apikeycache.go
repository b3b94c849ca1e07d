// Package apikeycache implements §4.1: the gateway-side cache of validated
// API key records, backed by the shared KV store. Grounded on
// original_source's redis_client.py get_cached_api_key/set_cached_api_key/
// get_stale_cache/refresh_cache_probabilistic.
package apikeycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/loganalytics/platform/internal/platform/kv"
)

// Record is the cached, validated shape of an API key — everything the
// gateway's auth middleware needs without calling the account service
// again.
type Record struct {
	ProjectID       string `json:"project_id"`
	AccountID       string `json:"account_id"`
	RateLimitMinute int    `json:"rate_limit_minute"`
	RateLimitHour   int    `json:"rate_limit_hour"`
	DailyQuota      int64  `json:"daily_quota"`
	Revoked         bool   `json:"revoked"`
}

// DefaultTTL is the cache entry lifetime (§4.1).
const DefaultTTL = 5 * time.Minute

// RefreshThreshold is the remaining-TTL floor below which a cache hit
// triggers a probabilistic async refresh.
const RefreshThreshold = 60 * time.Second

// RefreshProbability is the chance, per request, that a near-expiry hit
// schedules a refresh (matches redis_client.py's random() < 0.1).
const RefreshProbability = 0.1

// Cache wraps a kv.Client with the API-key-cache-specific key shape and
// TTL/refresh policy.
type Cache struct {
	kv *kv.Client
}

func New(client *kv.Client) *Cache { return &Cache{kv: client} }

// HashSecret returns the hex-encoded SHA-256 digest used as the cache key
// suffix, so the raw API key secret is never stored.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached record for secret, or (nil, nil) on a cache miss.
func (c *Cache) Get(ctx context.Context, secret string) (*Record, error) {
	raw, err := c.kv.Get(ctx, kv.APIKeyCacheKey(HashSecret(secret)))
	if err != nil {
		return nil, nil //nolint:nilerr // redis.Nil and transient errors are both treated as a miss by the caller
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetStale is identical to Get. Per spec.md §4.1 and the original Python
// implementation, using a stale cache entry as a fallback is a decision
// made by the caller (the auth middleware, on downstream RPC failure), not
// a property of the cache itself.
func (c *Cache) GetStale(ctx context.Context, secret string) (*Record, error) {
	return c.Get(ctx, secret)
}

// Set stores rec for secret with ttl (defaulting to DefaultTTL).
func (c *Cache) Set(ctx context.Context, secret string, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, kv.APIKeyCacheKey(HashSecret(secret)), payload, ttl)
}

// InvalidateKey deletes exactly the one cache entry for secret. This
// resolves the Open Question in spec.md §9: the original implementation's
// RevokeApiKey handler deleted every "api_key:*" key on any revocation,
// which would also evict unrelated keys still in active use. We invalidate
// only the key that was actually revoked.
func (c *Cache) InvalidateKey(ctx context.Context, secret string) error {
	return c.kv.Delete(ctx, kv.APIKeyCacheKey(HashSecret(secret)))
}

// MaybeRefresh checks the entry's remaining TTL and, if it is below
// RefreshThreshold, calls refresh (usually re-fetching from the account
// service and re-populating the cache) with probability RefreshProbability.
// It blocks on the TTL lookup and, when it refreshes, runs refresh on the
// calling goroutine.
func (c *Cache) MaybeRefresh(ctx context.Context, secret string, refresh func()) error {
	ttl, err := c.kv.TTL(ctx, kv.APIKeyCacheKey(HashSecret(secret)))
	if err != nil {
		return err
	}
	if ttl > 0 && ttl < RefreshThreshold && rand.Float64() < RefreshProbability {
		refresh()
	}
	return nil
}
