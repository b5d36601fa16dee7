package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// CachedStore layers a read-through cache over a Store. Asset and version
// lookups hit a process-local LRU first, then redis, then the backing store.
// Every write to a cached entity invalidates both layers, so readers see at
// worst a briefly stale copy bounded by the redis TTL.
type CachedStore struct {
	Store

	local   *lru.Cache[string, []byte]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

// WithRedis adds a shared redis layer behind the local LRU.
func WithRedis(client *redis.Client) CacheOption {
	return func(c *CachedStore) { c.redis = client }
}

// WithTTL sets the redis entry lifetime. Defaults to 5 minutes.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedStore) { c.ttl = ttl }
}

// WithCacheMetrics records hit and miss counters.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *CachedStore) { c.metrics = m }
}

// NewCachedStore wraps a Store with caching. size is the local LRU capacity.
func NewCachedStore(store Store, size int, opts ...CacheOption) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	c := &CachedStore{
		Store: store,
		local: local,
		ttl:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *CachedStore) hit(layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *CachedStore) miss(layer string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}

// lookup checks local then redis. A redis failure counts as a miss; the
// backing store stays authoritative.
func (c *CachedStore) lookup(ctx context.Context, key string, dest any) bool {
	if data, ok := c.local.Get(key); ok {
		if json.Unmarshal(data, dest) == nil {
			c.hit("local")
			return true
		}
	}
	c.miss("local")

	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.miss("redis")
			return false
		}
		c.miss("redis")
		return false
	}
	if json.Unmarshal(data, dest) != nil {
		c.miss("redis")
		return false
	}
	c.hit("redis")
	c.local.Add(key, data)
	return true
}

func (c *CachedStore) fill(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.local.Add(key, data)
	if c.redis != nil {
		// Best effort; a redis outage must not fail the read path.
		_ = c.redis.Set(ctx, key, data, c.ttl).Err()
	}
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Remove(key)
	}
	if c.redis != nil {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}

func assetKey(id string) string   { return "bazaar:asset:" + id }
func versionKey(id string) string { return "bazaar:version:" + id }

func (c *CachedStore) GetAsset(ctx context.Context, id string) (*assets.Asset, error) {
	var cached assets.Asset
	if c.lookup(ctx, assetKey(id), &cached) {
		return &cached, nil
	}
	a, err := c.Store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, assetKey(id), a)
	return a, nil
}

func (c *CachedStore) GetVersion(ctx context.Context, id string) (*assets.Version, error) {
	var cached assets.Version
	if c.lookup(ctx, versionKey(id), &cached) {
		return &cached, nil
	}
	v, err := c.Store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, versionKey(id), v)
	return v, nil
}

func (c *CachedStore) TransitionStatus(ctx context.Context, versionID string, from, to assets.Status, newTier assets.Tier) error {
	err := c.Store.TransitionStatus(ctx, versionID, from, to, newTier)
	c.invalidate(ctx, versionKey(versionID))
	return err
}

func (c *CachedStore) DecideReview(ctx context.Context, id int64, reviewer string, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error) {
	r, err := c.Store.DecideReview(ctx, id, reviewer, decision, rationale)
	if r != nil {
		c.invalidate(ctx, versionKey(r.VersionID))
	}
	return r, err
}
