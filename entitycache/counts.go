package entitycache

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/rpcpool/patricia-cache/cacheadapter"
)

// CountsCache is the counts sub-cache of §3: fingerprint-identity →
// i64 cardinality, bounded and independent of the full-iterable
// cache. Grounded on huge-cache/cache.go's bigcache wrapper and its
// Put*/Get* + ErrEntryNotFound convention.
type CountsCache struct {
	bc *bigcache.BigCache

	hits    atomic.Uint64
	misses  atomic.Uint64
	hitRate atomic.Uint64 // fixed point, parts per million
}

// NewCountsCache builds a counts cache whose entries expire after ttl.
func NewCountsCache(ctx context.Context, ttl time.Duration) (*CountsCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &CountsCache{bc: bc}, nil
}

func countsKey(fp cacheadapter.Fingerprint) string {
	return strconv.FormatUint(fp.Hash(), 16)
}

// Get returns the cached cardinality for fp, if present.
func (c *CountsCache) Get(fp cacheadapter.Fingerprint) (int64, bool) {
	raw, err := c.bc.Get(countsKey(fp))
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			return 0, false
		}
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return int64(binary.BigEndian.Uint64(raw)), true
}

// AdjustHitRate recomputes the counts-cache hit-rate estimate from the
// accumulated hit/miss counters, mirroring cacheadapter.Generation's
// estimator. Invoked by the same shared periodic timer (§5).
func (c *CountsCache) AdjustHitRate() {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	if total == 0 {
		c.hitRate.Store(0)
		return
	}
	c.hitRate.Store(hits * 1_000_000 / total)
}

// HitRate returns the most recently computed counts-cache hit-rate
// estimate, in parts per million.
func (c *CountsCache) HitRate() uint64 { return c.hitRate.Load() }

// Set installs count as fp's cached cardinality.
func (c *CountsCache) Set(fp cacheadapter.Fingerprint, count int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return c.bc.Set(countsKey(fp), buf)
}
