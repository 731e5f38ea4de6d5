package entitycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/patricia-cache/cacheadapter"
)

func TestDeferredFilterRejectsFirstSighting(t *testing.T) {
	f := NewDeferredFilter(50*time.Millisecond, 100)
	defer f.Close()

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	require.False(t, f.Admit(fp, time.Now()))
}

func TestDeferredFilterRejectsSecondSightingBeforeDelay(t *testing.T) {
	f := NewDeferredFilter(200*time.Millisecond, 100)
	defer f.Close()

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	now := time.Now()
	require.False(t, f.Admit(fp, now))
	require.False(t, f.Admit(fp, now.Add(10*time.Millisecond)))
}

// TestScenario4DeferredAdmissionAfterDelay exercises §4.G's Scenario
// 4: a fingerprint seen twice more than deferredDelay apart is
// admitted on the second sighting.
func TestScenario4DeferredAdmissionAfterDelay(t *testing.T) {
	f := NewDeferredFilter(50*time.Millisecond, 100)
	defer f.Close()

	fp := cacheadapter.NewShapeFingerprint("q1", true, nil, time.Now())
	now := time.Now()
	require.False(t, f.Admit(fp, now))
	require.True(t, f.Admit(fp, now.Add(100*time.Millisecond)))
}

func TestIV10DeferredFilterKeysByStructuralHash(t *testing.T) {
	f := NewDeferredFilter(50*time.Millisecond, 100)
	defer f.Close()

	// Two separately built fingerprints with equal hashes share one
	// admission record, since the filter keys on Hash() alone — a
	// documented approximation (see DESIGN.md).
	a := cacheadapter.NewShapeFingerprint("same-hash-key", true, nil, time.Now())
	b := cacheadapter.NewShapeFingerprint("same-hash-key", true, nil, time.Now())
	require.Equal(t, a.Hash(), b.Hash())

	now := time.Now()
	require.False(t, f.Admit(a, now))
	require.False(t, f.Admit(b, now.Add(10*time.Millisecond)), "b collides with a's pending admission record")
}
