// Package cachepolicy implements the query-cancellation policy
// (component E): the decision of whether a background caching job may
// start, must abort mid-flight, and why.
package cachepolicy

import (
	"time"

	"github.com/rpcpool/patricia-cache/errs"
)

// GenerationVersion identifies one cache-adapter generation. The
// cache-adapter package hands these out; the policy only compares
// them for equality.
type GenerationVersion uint64

// Policy is the state a caching job carries. The current generation is
// supplied by the caller at NeedToCancel time so the policy never has
// to reach back into the cache adapter itself — it stays a pure
// function of its own fields plus the time and generation passed in.
type Policy struct {
	IsConsistent         bool
	StartTime            time.Time
	CachingTimeout       time.Duration
	StartCachingTimeout  time.Duration
	LocalCacheGeneration GenerationVersion
}

// CanStartAt reports whether a job governed by this policy is still
// allowed to start at now: it must not have waited in the queue
// longer than StartCachingTimeout.
func (p Policy) CanStartAt(now time.Time) bool {
	return now.Sub(p.StartTime) < p.StartCachingTimeout
}

// NeedToCancel reports whether a running job must abort: either its
// generation has been superseded (consistent jobs only — an
// inconsistent job tolerates reading through stale adapters) or its
// wall-clock budget has been exhausted.
func (p Policy) NeedToCancel(now time.Time, currentGeneration GenerationVersion) bool {
	obsolete := p.IsConsistent && currentGeneration != p.LocalCacheGeneration
	overdue := now.Sub(p.StartTime) > p.CachingTimeout
	return obsolete || overdue
}

// DoCancel builds the TooLongInstantiation error carrying the correct
// reason for the current state. Callers should have already confirmed
// NeedToCancel returned true; DoCancel just picks the reason.
func (p Policy) DoCancel(now time.Time, currentGeneration GenerationVersion) error {
	if p.IsConsistent && currentGeneration != p.LocalCacheGeneration {
		return &errs.TooLongInstantiation{Reason: errs.CacheAdapterObsolete}
	}
	return &errs.TooLongInstantiation{Reason: errs.JobOverdue}
}

// Timeout picks the correct budget for this policy: the full-iterable
// timeout when the job is consistent, otherwise the counts-only
// timeout (a distinct, usually shorter, budget the caller supplies).
func Timeout(isConsistent bool, fullTimeout, countsTimeout time.Duration) time.Duration {
	if isConsistent {
		return fullTimeout
	}
	return countsTimeout
}
