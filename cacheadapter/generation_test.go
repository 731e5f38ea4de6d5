package cacheadapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerationGetMiss(t *testing.T) {
	g := NewGeneration(0, 10)
	fp := NewShapeFingerprint("shape-a", true, nil, time.Now())
	_, ok := g.Get(fp)
	require.False(t, ok)
}

func TestGenerationPutAndGetDoesNotMutateParent(t *testing.T) {
	g0 := NewGeneration(0, 10)
	fp := NewShapeFingerprint("shape-a", true, nil, time.Now())

	g1 := g0.WithPut(CachedIterable{Fingerprint: fp, Value: 42})

	_, ok := g0.Get(fp)
	require.False(t, ok, "parent generation must be untouched")

	got, ok := g1.Get(fp)
	require.True(t, ok)
	require.Equal(t, 42, got.Value)
}

func TestGenerationEvict(t *testing.T) {
	fp := NewShapeFingerprint("shape-a", true, nil, time.Now())
	g0 := NewGeneration(0, 10).WithPut(CachedIterable{Fingerprint: fp, Value: 1})
	g1 := g0.WithEvict(fp)

	_, ok := g1.Get(fp)
	require.False(t, ok)
	_, ok = g0.Get(fp)
	require.True(t, ok, "evict must not mutate the source generation")
}

func TestGenerationSparseness(t *testing.T) {
	g := NewGeneration(0, 10)
	require.True(t, g.IsSparse())
	for i := 0; i < 9; i++ {
		fp := NewShapeFingerprint(string(rune('a'+i)), true, nil, time.Now())
		g = g.WithPut(CachedIterable{Fingerprint: fp, Value: i})
	}
	require.False(t, g.IsSparse())
}

func TestGenerationHitRate(t *testing.T) {
	g := NewGeneration(0, 10)
	g.RecordHit()
	g.RecordHit()
	g.RecordHit()
	g.RecordMiss()
	g.AdjustHitRate()
	require.Equal(t, uint64(750_000), g.HitRate())
}

func TestIV8CompareAndSetVisibility(t *testing.T) {
	g1 := NewGeneration(1, 10)
	adapter := NewAdapter(g1)

	// A transaction opened before the swap captures g1 by value.
	txnBeforeView := adapter.Load()
	require.Same(t, g1, txnBeforeView)

	g2 := NewGeneration(2, 10)
	require.True(t, adapter.CompareAndSet(g1, g2))

	// A transaction opened afterward sees g2.
	txnAfterView := adapter.Load()
	require.Same(t, g2, txnAfterView)

	// The earlier transaction's snapshot is untouched.
	require.Same(t, g1, txnBeforeView)

	// A stale compare-and-swap fails.
	require.False(t, adapter.CompareAndSet(g1, NewGeneration(3, 10)))
}
