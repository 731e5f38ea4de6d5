package entitycache

import (
	"context"
	"errors"
	"time"

	"github.com/rpcpool/patricia-cache/cacheadapter"
	"github.com/rpcpool/patricia-cache/cachepolicy"
	"github.com/rpcpool/patricia-cache/errs"
	"github.com/rpcpool/patricia-cache/internal/workpool"
)

// canStartQueued reports whether a job that has waited in the queue
// since enqueuedAt may still start, reusing cachepolicy's own
// queue-wait check rather than re-deriving it.
func canStartQueued(enqueuedAt time.Time, startCachingTimeout time.Duration) bool {
	p := cachepolicy.Policy{StartTime: enqueuedAt, StartCachingTimeout: startCachingTimeout}
	return p.CanStartAt(time.Now())
}

// jobKey folds a fingerprint's structural hash and its consistency
// class into the single uint64 identity the scheduler coalesces on.
// The two lanes already route by Consistent(), so this only has to
// keep (fingerprint, consistency) pairs distinct from each other, not
// redo the sharding the real source did with its hash-mangling trick.
func jobKey(fp cacheadapter.Fingerprint, consistent bool) uint64 {
	key := fp.Hash() << 1
	if consistent {
		key |= 1
	}
	return key
}

// cachingJob is the asynchronous caching job of §4.H. enqueuedAt
// anchors canStartAt's queue-wait check; requeues counts how many
// times this identity has already been bounced for a read-only
// conflict, capped by Controller.maxRequeues.
type cachingJob struct {
	c            *Controller
	fp           cacheadapter.Fingerprint
	threadSafe   bool
	enqueuedAt   time.Time
	requeues     int
}

func newCachingJob(c *Controller, fp cacheadapter.Fingerprint, threadSafe bool, requeues int) *cachingJob {
	return &cachingJob{c: c, fp: fp, threadSafe: threadSafe, enqueuedAt: time.Now(), requeues: requeues}
}

func (j *cachingJob) Key() uint64      { return jobKey(j.fp, j.fp.IsConsistent()) }
func (j *cachingJob) Consistent() bool { return j.fp.IsConsistent() }

func (j *cachingJob) Run(ctx context.Context) {
	c := j.c

	// 1. Re-check queue-full and canStartAt; abandon silently if
	// either no longer holds — the caller already has the uncached
	// iterable back.
	if c.IsCachingQueueFull() {
		c.telemetry.JobNotStarted()
		return
	}
	if !canStartQueued(j.enqueuedAt, c.startCachingTimeout) {
		c.telemetry.JobNotStarted()
		return
	}

	// 2. Open a read-only transaction.
	tctx, finish := c.opener.BeginReadOnly()
	defer finish()

	// 3. Inconsistent jobs keep their fingerprint alive across the
	// wait by resetting its birth timestamp.
	if !j.fp.IsConsistent() {
		j.fp.ResetBirthTime(time.Now())
	}

	// 4. Install the cancellation policy, capturing the local-cache
	// generation this job is bound to.
	generation := c.opener.CurrentGeneration()
	startGen := c.adapter.Load()
	timeout := cachepolicy.Timeout(j.fp.IsConsistent(), c.cachingTimeout, c.countsCachingTimeout)
	policy := cancellationPolicyFor(j.fp.IsConsistent(), generation, timeout, c.startCachingTimeout)
	tctx.SetQueryCancellingPolicy(policy)

	c.telemetry.JobStarted()

	// 5. Materialise.
	result, err := c.materializer.Materialize(ctx, j.fp)
	if err != nil {
		if errors.Is(err, errs.ReadonlyConflict) {
			if j.requeues < c.maxRequeues {
				// Release this attempt's coalescing slot before
				// re-enqueueing under the same identity, or QueueIn
				// would see it as still pending and drop the retry.
				c.scheduler.ClearPending(j.Key())
				c.scheduler.QueueIn(newCachingJob(c, j.fp, j.threadSafe, j.requeues+1), 0, workpool.BelowNormal)
			} else {
				c.telemetry.JobInterrupted("read-only conflict exhausted")
			}
			return
		}
		c.telemetry.JobInterrupted(interruptReason(err))
		return
	}

	// 6. Admit by compare-and-swap, but only while the shared
	// generation is still the one this job started against; otherwise
	// the result is discarded.
	if c.adapter.Load() != startGen {
		return
	}
	c.admit(j.fp, result)
}

// countingJob is the asynchronous counts-only materialisation job
// scheduled by GetCachedCountByIterable when no cached count exists
// and the caller is not itself a caching-worker thread.
type countingJob struct {
	c          *Controller
	fp         cacheadapter.Fingerprint
	enqueuedAt time.Time
}

func newCountingJob(c *Controller, fp cacheadapter.Fingerprint, _ int) *countingJob {
	return &countingJob{c: c, fp: fp, enqueuedAt: time.Now()}
}

func (j *countingJob) Key() uint64      { return jobKey(j.fp, j.fp.IsConsistent()) }
func (j *countingJob) Consistent() bool { return j.fp.IsConsistent() }

func (j *countingJob) Run(ctx context.Context) {
	c := j.c
	if !canStartQueued(j.enqueuedAt, c.startCachingTimeout) {
		c.telemetry.JobNotStarted()
		return
	}

	tctx, finish := c.opener.BeginReadOnly()
	defer finish()

	generation := c.opener.CurrentGeneration()
	policy := cancellationPolicyFor(j.fp.IsConsistent(), generation, c.countsCachingTimeout, c.startCachingTimeout)
	tctx.SetQueryCancellingPolicy(policy)

	result, err := c.materializer.Materialize(ctx, j.fp)
	if err != nil {
		c.telemetry.JobInterrupted(interruptReason(err))
		return
	}
	_ = c.SetCachedCount(j.fp, result.Size())
}
