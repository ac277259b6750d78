package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/flagscope/internal/observability"
	"github.com/rafaeljc/flagscope/internal/projection"
)

// ViewEntry is a projected view together with the fingerprint of the datafile it came from.
type ViewEntry struct {
	Fingerprint string
	View        *projection.ConfigView
}

// MemoryCache is the L1 cache of projected views, keyed by SDK key.
// capacity bounds the number of entries; ttl bounds how long an entry is trusted
// even when nobody checks its fingerprint.
type MemoryCache struct {
	store otter.Cache[string, *ViewEntry]

	// last observed cumulative stats, used to publish deltas
	lastEvicted  int64
	lastRejected int64
}

func NewMemoryCache(capacity int, ttl time.Duration) (*MemoryCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}

	store, err := otter.MustBuilder[string, *ViewEntry](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory cache: %w", err)
	}

	return &MemoryCache{store: store}, nil
}

func (c *MemoryCache) Get(sdkKey string) (*ViewEntry, bool) {
	e, ok := c.store.Get(sdkKey)
	if ok {
		observability.ViewCacheHits.Inc()
	} else {
		observability.ViewCacheMisses.Inc()
	}
	return e, ok
}

// Set stores e. It reports false when the cache rejected the write.
func (c *MemoryCache) Set(sdkKey string, e *ViewEntry) bool {
	return c.store.Set(sdkKey, e)
}

func (c *MemoryCache) Del(sdkKey string) {
	c.store.Delete(sdkKey)
}

func (c *MemoryCache) Len() int {
	return c.store.Size()
}

func (c *MemoryCache) Close() {
	c.store.Close()
}

// RunMetricsCollector publishes size, evictions and rejected writes every interval
// until ctx is cancelled. Only one collector may run per cache.
func (c *MemoryCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *MemoryCache) collect() {
	stats := c.store.Stats()

	observability.ViewCacheItems.Set(float64(c.store.Size()))

	if evicted := stats.EvictedCount(); evicted > c.lastEvicted {
		observability.ViewCacheEvictions.Add(float64(evicted - c.lastEvicted))
		c.lastEvicted = evicted
	}
	if rejected := stats.RejectedSets(); rejected > c.lastRejected {
		observability.ViewCacheDropped.Add(float64(rejected - c.lastRejected))
		c.lastRejected = rejected
	}
}
