// Package semcache is the two-tier semantic cache in front of the
// traversal engine: an in-process tier (infrastructure/cache) backed by a
// shared Redis tier (go-redis/v8), with a reverse index from node ID to
// cache key so a single ingestion can invalidate exactly the cached
// traversals it touched instead of flushing everything.
package semcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/graphctl/infrastructure/cache"
	"github.com/R3E-Network/graphctl/infrastructure/metrics"
	"github.com/R3E-Network/graphctl/internal/errs"
)

// DefaultTTL matches the traversal result lifetime used by the original
// orchestrator's semantic cache.
const DefaultTTL = 10 * time.Minute

// Cache is the two-tier cache: L1 is the local process cache, L2 is
// shared Redis. A miss on L1 that hits L2 is promoted back into L1.
type Cache struct {
	l1      *cache.Cache
	l2      *redis.Client
	keyTTL  time.Duration
	metrics *metrics.Metrics

	mu          sync.Mutex
	nodeIndex   map[string]map[string]bool // nodeID -> set of cache keys touching it
	tenantIndex map[string]map[string]bool // tenantID -> set of cache keys it owns
}

// New builds a Cache. redisClient may be nil, in which case the cache
// runs L1-only (useful for single-instance deployments or tests).
func New(redisClient *redis.Client, m *metrics.Metrics) *Cache {
	return &Cache{
		l1:          cache.NewCache(cache.DefaultConfig()),
		l2:          redisClient,
		keyTTL:      DefaultTTL,
		metrics:     m,
		nodeIndex:   make(map[string]map[string]bool),
		tenantIndex: make(map[string]map[string]bool),
	}
}

// Key builds the cache key for a traversal over a tenant/seed/strategy
// combination, matching the original's cache-key composition: tenant,
// query intent, and sorted seed IDs all contribute, so two semantically
// identical requests collide and two tenant- or seed-distinct ones never
// do.
func Key(tenantID, queryIntent string, seedIDs []string) string {
	sorted := append([]string(nil), seedIDs...)
	sort.Strings(sorted)
	return fmt.Sprintf("semcache:%s:%s:%v", tenantID, queryIntent, sorted)
}

// Get returns the cached value for key, checking L1 first and falling
// back to L2. A tenant must always be supplied as part of key (see Key)
// so a cache hit can never cross tenant boundaries.
func (c *Cache) Get(ctx context.Context, tenantID string, key string) (string, bool) {
	if tenantID == "" {
		return "", false
	}
	if v, ok := c.l1.Get(key); ok {
		c.recordHit(tenantID, "l1")
		return v.(string), true
	}

	if c.l2 != nil {
		val, err := c.l2.Get(ctx, key).Result()
		if err == nil {
			c.l1.Set(key, val, c.keyTTL)
			c.recordHit(tenantID, "l2")
			return val, true
		}
	}

	c.recordMiss(tenantID)
	return "", false
}

// Set writes value into both tiers and records key against every nodeID
// it depends on, so a later InvalidateByNodes call can find it, and
// against tenantID so InvalidateTenant can fall back to a full sweep
// when the caller does not know which node ids are affected.
func (c *Cache) Set(ctx context.Context, tenantID, key, value string, nodeIDs []string) error {
	c.l1.Set(key, value, c.keyTTL)
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, c.keyTTL).Err(); err != nil {
			return fmt.Errorf("write to redis tier: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range nodeIDs {
		if c.nodeIndex[id] == nil {
			c.nodeIndex[id] = make(map[string]bool)
		}
		c.nodeIndex[id][key] = true
	}
	if tenantID != "" {
		if c.tenantIndex[tenantID] == nil {
			c.tenantIndex[tenantID] = make(map[string]bool)
		}
		c.tenantIndex[tenantID][key] = true
	}
	return nil
}

// InvalidateByNodes evicts every cached traversal that touched any of
// nodeIDs, used after a commit whose affected-node set is known, instead
// of the thundering-herd alternative of invalidating the whole cache on
// every ingestion run.
func (c *Cache) InvalidateByNodes(ctx context.Context, tenantID string, nodeIDs []string) {
	c.mu.Lock()
	keys := make(map[string]bool)
	for _, id := range nodeIDs {
		for key := range c.nodeIndex[id] {
			keys[key] = true
		}
		delete(c.nodeIndex, id)
	}
	c.mu.Unlock()

	for key := range keys {
		c.l1.Invalidate(key)
		if c.l2 != nil {
			c.l2.Del(ctx, key)
		}
		if c.metrics != nil {
			c.metrics.CacheInvalidationsTotal.WithLabelValues(tenantID, "ingest").Inc()
		}
	}
}

// InvalidateTenant evicts every cached entry belonging to tenantID,
// regardless of which node ids they depend on. PostCommit falls back to
// this when a commit's affected-node set is unknown (e.g. a prune pass
// that could not resolve endpoint ids), trading precision for a
// guarantee that nothing stale survives.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) {
	c.mu.Lock()
	keys := c.tenantIndex[tenantID]
	delete(c.tenantIndex, tenantID)
	c.mu.Unlock()

	for key := range keys {
		c.l1.Invalidate(key)
		if c.l2 != nil {
			c.l2.Del(ctx, key)
		}
		if c.metrics != nil {
			c.metrics.CacheInvalidationsTotal.WithLabelValues(tenantID, "ingest_tenant_wide").Inc()
		}
	}
}

func (c *Cache) recordHit(tenantID, tier string) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(tenantID, tier)
	}
}

func (c *Cache) recordMiss(tenantID string) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(tenantID, "l1")
	}
}

// MarshalResult serializes a traversal result for storage; extracted so
// callers don't need to reach into encoding/json directly.
func MarshalResult(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal cache value: %w", err)
	}
	return string(raw), nil
}

// UnmarshalResult deserializes a cached traversal result into dest.
func UnmarshalResult(raw string, dest any) error {
	return json.Unmarshal([]byte(raw), dest)
}

// RequireTenant returns IngestRejection if tenantID is empty, used by
// callers before computing a cache key so an unscoped lookup never
// silently falls through to a shared/global cache bucket.
func RequireTenant(tenantID string) error {
	if tenantID == "" {
		return errs.IngestRejection("semantic cache lookup requires a non-empty tenant_id")
	}
	return nil
}
