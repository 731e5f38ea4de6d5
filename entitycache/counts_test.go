package entitycache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/patricia-cache/cacheadapter"
)

func TestCountsCacheMissThenSetThenHit(t *testing.T) {
	c, err := NewCountsCache(context.Background(), time.Minute)
	require.NoError(t, err)

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	_, ok := c.Get(fp)
	require.False(t, ok)

	require.NoError(t, c.Set(fp, 123))
	count, ok := c.Get(fp)
	require.True(t, ok)
	require.Equal(t, int64(123), count)
}

// TestScenario6NegativeCountsRoundTrip exercises the big-endian
// encoding's handling of negative cardinalities, which the wire
// format (raw int64 bit pattern) must round-trip correctly even
// though cardinalities are not expected to be negative in practice.
func TestScenario6NegativeCountsRoundTrip(t *testing.T) {
	c, err := NewCountsCache(context.Background(), time.Minute)
	require.NoError(t, err)

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	require.NoError(t, c.Set(fp, -1))
	count, ok := c.Get(fp)
	require.True(t, ok)
	require.Equal(t, int64(-1), count)
}

func TestCountsCacheAdjustHitRateReflectsHitsAndMisses(t *testing.T) {
	c, err := NewCountsCache(context.Background(), time.Minute)
	require.NoError(t, err)

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	require.NoError(t, c.Set(fp, 1))

	_, _ = c.Get(fp) // hit
	_, _ = c.Get(cacheadapter.NewShapeFingerprint("missing", true, nil, time.Now())) // miss

	c.AdjustHitRate()
	require.Equal(t, uint64(500_000), c.HitRate())
}

func TestCountsCacheOverwrite(t *testing.T) {
	c, err := NewCountsCache(context.Background(), time.Minute)
	require.NoError(t, err)

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	require.NoError(t, c.Set(fp, 1))
	require.NoError(t, c.Set(fp, 2))
	count, ok := c.Get(fp)
	require.True(t, ok)
	require.Equal(t, int64(2), count)
}
