package cachepolicy

import (
	"testing"
	"time"

	"github.com/rpcpool/patricia-cache/errs"
	"github.com/stretchr/testify/require"
)

func TestCanStartAt(t *testing.T) {
	start := time.Unix(0, 0)
	p := Policy{StartTime: start, StartCachingTimeout: 10 * time.Second}
	require.True(t, p.CanStartAt(start.Add(5*time.Second)))
	require.False(t, p.CanStartAt(start.Add(11*time.Second)))
}

func TestScenario5CancellationOnAdapterSwap(t *testing.T) {
	start := time.Unix(0, 0)
	p := Policy{
		IsConsistent:         true,
		StartTime:            start,
		CachingTimeout:       time.Minute,
		LocalCacheGeneration: 1,
	}
	now := start.Add(time.Second)
	require.False(t, p.NeedToCancel(now, 1))
	require.True(t, p.NeedToCancel(now, 2))

	err := p.DoCancel(now, 2)
	var tli *errs.TooLongInstantiation
	require.ErrorAs(t, err, &tli)
	require.Equal(t, errs.CacheAdapterObsolete, tli.Reason)
}

func TestNeedToCancelOnOverdueBudget(t *testing.T) {
	start := time.Unix(0, 0)
	p := Policy{
		IsConsistent:         false,
		StartTime:            start,
		CachingTimeout:       time.Second,
		LocalCacheGeneration: 1,
	}
	now := start.Add(2 * time.Second)
	require.True(t, p.NeedToCancel(now, 1))

	err := p.DoCancel(now, 1)
	var tli *errs.TooLongInstantiation
	require.ErrorAs(t, err, &tli)
	require.Equal(t, errs.JobOverdue, tli.Reason)
}

func TestInconsistentJobToleratesGenerationSwap(t *testing.T) {
	start := time.Unix(0, 0)
	p := Policy{
		IsConsistent:         false,
		StartTime:            start,
		CachingTimeout:       time.Minute,
		LocalCacheGeneration: 1,
	}
	require.False(t, p.NeedToCancel(start, 999))
}

func TestTimeoutSelection(t *testing.T) {
	full := 5 * time.Second
	counts := time.Second
	require.Equal(t, full, Timeout(true, full, counts))
	require.Equal(t, counts, Timeout(false, full, counts))
}
