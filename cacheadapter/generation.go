// Package cacheadapter implements the cache-adapter generation
// (component F): a versioned, copy-on-replace snapshot mapping
// fingerprints to cached iterables, with compare-and-swap replacement
// and a hit-rate estimator.
//
// A true structurally-shared persistent map (the teacher has none in
// its dependency surface; see DESIGN.md) would make single-entry
// mutation cheap. Lacking one, a Generation's WithPut/WithEvict clone
// the top-level bucket table backed by tidwall/hashmap and share
// untouched bucket slices with the parent — cheaper than a deep copy,
// while still honoring "mutation produces a new generation" from the
// reader's perspective.
package cacheadapter

import (
	"sync/atomic"

	"github.com/tidwall/hashmap"
)

// Version identifies one generation. Transactions remember the
// version they opened against.
type Version uint64

// CachedIterable is a materialised query result plus the fingerprint
// it was computed for.
type CachedIterable struct {
	Fingerprint Fingerprint
	Value       any
}

// Expired reports whether this entry's fingerprint has expired.
func (c CachedIterable) Expired() bool { return c.Fingerprint.IsExpired() }

// sparseFillFactor is the fill-factor threshold below which a
// generation is considered sparse and the deferred-admission filter
// is bypassed (§4.G).
const sparseFillFactor = 0.5

// Generation is an immutable-from-the-reader's-perspective snapshot
// of the full-iterable cache.
type Generation struct {
	version  Version
	capacity int
	entries  *hashmap.Map[uint64, []CachedIterable]

	hits    atomic.Uint64
	misses  atomic.Uint64
	hitRate atomic.Uint64 // fixed point, parts per million
}

// NewGeneration builds an empty generation at the given version with
// the given target capacity (used for the sparseness estimate, the
// controller's back-pressure check via Capacity, and the initial map
// size).
func NewGeneration(version Version, capacity int) *Generation {
	return &Generation{
		version:  version,
		capacity: capacity,
		entries:  hashmap.New[uint64, []CachedIterable](capacity),
	}
}

// Version returns this generation's version number.
func (g *Generation) Version() Version { return g.version }

// Count returns the number of entries in this generation.
func (g *Generation) Count() int { return g.entries.Len() }

// Capacity returns the target capacity this generation was built
// with, used by the controller's back-pressure check rather than the
// current (possibly zero) entry count.
func (g *Generation) Capacity() int { return g.capacity }

// IsSparse reports whether the fill factor is low enough to admit new
// entries without deferral.
func (g *Generation) IsSparse() bool {
	if g.capacity <= 0 {
		return true
	}
	return float64(g.Count())/float64(g.capacity) < sparseFillFactor
}

// Get looks up fp in this generation.
func (g *Generation) Get(fp Fingerprint) (CachedIterable, bool) {
	bucket, ok := g.entries.Get(fp.Hash())
	if !ok {
		return CachedIterable{}, false
	}
	for _, e := range bucket {
		if e.Fingerprint.Equal(fp) {
			return e, true
		}
	}
	return CachedIterable{}, false
}

// WithPut returns a new generation, one version ahead, with ci
// inserted (replacing any existing entry with an equal fingerprint).
// g itself is untouched.
func (g *Generation) WithPut(ci CachedIterable) *Generation {
	out := g.shallowClone()
	bucket, _ := out.entries.Get(ci.Fingerprint.Hash())
	out.entries.Set(ci.Fingerprint.Hash(), replaceOrAppend(bucket, ci))
	return out
}

// WithEvict returns a new generation with any entry matching fp
// removed. g itself is untouched.
func (g *Generation) WithEvict(fp Fingerprint) *Generation {
	out := g.shallowClone()
	bucket, ok := out.entries.Get(fp.Hash())
	if !ok {
		return out
	}
	filtered := make([]CachedIterable, 0, len(bucket))
	for _, e := range bucket {
		if !e.Fingerprint.Equal(fp) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		out.entries.Delete(fp.Hash())
	} else {
		out.entries.Set(fp.Hash(), filtered)
	}
	return out
}

func (g *Generation) shallowClone() *Generation {
	out := &Generation{version: g.version + 1, capacity: g.capacity}
	out.entries = hashmap.New[uint64, []CachedIterable](g.entries.Len())
	g.entries.Scan(func(k uint64, v []CachedIterable) bool {
		out.entries.Set(k, v)
		return true
	})
	out.hits.Store(g.hits.Load())
	out.misses.Store(g.misses.Load())
	out.hitRate.Store(g.hitRate.Load())
	return out
}

func replaceOrAppend(bucket []CachedIterable, ci CachedIterable) []CachedIterable {
	for i, e := range bucket {
		if e.Fingerprint.Equal(ci.Fingerprint) {
			out := make([]CachedIterable, len(bucket))
			copy(out, bucket)
			out[i] = ci
			return out
		}
	}
	out := make([]CachedIterable, len(bucket), len(bucket)+1)
	copy(out, bucket)
	return append(out, ci)
}

// RecordHit increments the hit counter used by AdjustHitRate.
func (g *Generation) RecordHit() { g.hits.Add(1) }

// RecordMiss increments the miss counter used by AdjustHitRate.
func (g *Generation) RecordMiss() { g.misses.Add(1) }

// AdjustHitRate recomputes the hit-rate estimate from the accumulated
// hit/miss counters. It is invoked periodically by the shared timer
// alongside the stuck-transaction monitor (§5).
func (g *Generation) AdjustHitRate() {
	hits, misses := g.hits.Load(), g.misses.Load()
	total := hits + misses
	if total == 0 {
		g.hitRate.Store(0)
		return
	}
	g.hitRate.Store(hits * 1_000_000 / total)
}

// HitRate returns the most recently computed hit-rate estimate, in
// parts per million.
func (g *Generation) HitRate() uint64 { return g.hitRate.Load() }
