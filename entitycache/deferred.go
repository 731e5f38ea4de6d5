// Package entitycache implements the deferred-admission filter
// (component G) and the entity-iterable cache controller (component
// H): the concurrency and admission-control core described in §4.G/H.
package entitycache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rpcpool/patricia-cache/cacheadapter"
)

// DeferredFilter is the two-stage admission gate of §4.G: a
// fingerprint seen once within deferredDelay is never admitted; only
// a second sighting past the delay is. Backed by
// jellydator/ttlcache/v3, which gives it bounded, approximately-LRU
// eviction for free.
//
// Fingerprints are keyed by their structural hash only. Unlike
// cacheadapter.Generation, which buckets by hash and then
// disambiguates by Equal, two distinct fingerprints that happen to
// collide share one admission record here: the second can be admitted
// on its first sighting if the first was recorded more than
// deferredDelay earlier.
type DeferredFilter struct {
	deferredDelay time.Duration
	firstSeen     *ttlcache.Cache[uint64, time.Time]
}

// NewDeferredFilter builds a filter with the given admission delay and
// approximate capacity.
func NewDeferredFilter(deferredDelay time.Duration, capacity uint64) *DeferredFilter {
	cache := ttlcache.New[uint64, time.Time](
		ttlcache.WithTTL[uint64, time.Time](deferredDelay*4),
		ttlcache.WithCapacity[uint64, time.Time](capacity),
	)
	go cache.Start()
	return &DeferredFilter{deferredDelay: deferredDelay, firstSeen: cache}
}

// Admit implements the two-stage admission check of §4.G: a
// fingerprint seen once within deferredDelay is rejected; only a
// second sighting past the delay is admitted. Sparse iterables bypass
// this filter entirely, but that decision belongs to the caller (the
// controller checks IsSparse before ever calling Admit) rather than
// being threaded through as a parameter here.
func (f *DeferredFilter) Admit(fp cacheadapter.Fingerprint, now time.Time) bool {
	key := fp.Hash()
	item := f.firstSeen.Get(key)
	if item == nil {
		f.firstSeen.Set(key, now, ttlcache.DefaultTTL)
		return false
	}
	if now.Sub(item.Value()) < f.deferredDelay {
		return false
	}
	return true
}

// Close stops the filter's background eviction goroutine.
func (f *DeferredFilter) Close() {
	f.firstSeen.Stop()
}
