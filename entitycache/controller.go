package entitycache

import (
	"context"
	"errors"
	"time"

	"k8s.io/klog/v2"

	"github.com/rpcpool/patricia-cache/cacheadapter"
	"github.com/rpcpool/patricia-cache/cachepolicy"
	"github.com/rpcpool/patricia-cache/errs"
	"github.com/rpcpool/patricia-cache/internal/txn"
	"github.com/rpcpool/patricia-cache/internal/workpool"
)

// Iterable is a query result eligible for caching: an entity-iterable
// in the original system's vocabulary. The controller never inspects
// its contents, only these four properties.
type Iterable interface {
	Fingerprint() cacheadapter.Fingerprint
	CanBeCached() bool
	ThreadSafe() bool
	Size() int64
}

// Materializer computes the cached value for a fingerprint, opening
// whatever transaction and log reads that takes. It is supplied by the
// caller of this package (the query engine), never by entitycache
// itself.
type Materializer interface {
	Materialize(ctx context.Context, fp cacheadapter.Fingerprint) (Iterable, error)
}

// TxnOpener opens the read-only transaction an async caching job runs
// under (§4.H, on-execution step 2). BeginReadOnly returns the new
// transaction context plus a closure that finishes it; production
// wires this to the environment's transaction registry, tests
// substitute a fake.
type TxnOpener interface {
	BeginReadOnly() (txn.Context, func())
	CurrentGeneration() cachepolicy.GenerationVersion
}

// Recorder is the subset of the telemetry surface the controller
// depends on. Tests substitute a fake; production wires
// telemetry.Global.
type Recorder interface {
	Hit()
	Miss()
	CountHit()
	CountMiss()
	JobEnqueued()
	JobNotEnqueued()
	JobStarted()
	JobNotStarted()
	JobInterrupted(reason string)
	CountJobEnqueued()
	SetHitRate(ppm uint64)
	SetCountsHitRate(ppm uint64)
}

// Controller is the entity-iterable cache controller (component H):
// the admission-control and concurrency core wiring together the
// cache adapter, the deferred filter, the counts sub-cache, and the
// background task scheduler.
type Controller struct {
	adapter      *cacheadapter.Adapter
	counts       *CountsCache
	deferred     *DeferredFilter
	scheduler    *workpool.Pool
	materializer Materializer
	opener       TxnOpener
	telemetry    Recorder

	cachingDisabled bool

	cachingTimeout       time.Duration
	countsCachingTimeout time.Duration
	startCachingTimeout  time.Duration

	// maxRequeues bounds the ReadonlyConflict re-enqueue loop per job
	// identity per generation — the Open Question in Design Notes §9
	// resolved as "one re-queue, then give up" to keep a pathologically
	// contended fingerprint from looping forever.
	maxRequeues int
}

// Config bundles the controller's tunables, taken from the
// configuration keys of §6.
type Config struct {
	CachingDisabled      bool
	CachingTimeout       time.Duration
	CountsCachingTimeout time.Duration
	StartCachingTimeout  time.Duration
	MaxRequeues          int
}

// NewController wires the collaborators of §4.H together.
func NewController(
	adapter *cacheadapter.Adapter,
	counts *CountsCache,
	deferred *DeferredFilter,
	scheduler *workpool.Pool,
	materializer Materializer,
	opener TxnOpener,
	recorder Recorder,
	cfg Config,
) *Controller {
	maxRequeues := cfg.MaxRequeues
	if maxRequeues <= 0 {
		maxRequeues = 1
	}
	return &Controller{
		adapter:              adapter,
		counts:               counts,
		deferred:             deferred,
		scheduler:            scheduler,
		materializer:         materializer,
		opener:               opener,
		telemetry:            recorder,
		cachingDisabled:      cfg.CachingDisabled,
		cachingTimeout:       cfg.CachingTimeout,
		countsCachingTimeout: cfg.CountsCachingTimeout,
		startCachingTimeout:  cfg.StartCachingTimeout,
		maxRequeues:          maxRequeues,
	}
}

// PutIfNotCached implements §4.H's admission algorithm. tctx is the
// calling transaction; it carries the local cache view this call
// reads and evicts against.
func (c *Controller) PutIfNotCached(ctx context.Context, tctx txn.Context, iterable Iterable) Iterable {
	// 1. Disabled globally, or this result is not cacheable at all.
	if c.cachingDisabled || !iterable.CanBeCached() {
		return iterable
	}

	fp := iterable.Fingerprint()
	local := tctx.GetLocalCache()

	// 3. Record the attempt before we know hit or miss.
	tctx.LocalCacheAttempt()

	// 4. Look up by fingerprint in the local view.
	if local != nil {
		if cached, ok := local.Get(fp); ok {
			if !cached.Expired() {
				tctx.LocalCacheHit()
				local.RecordHit()
				c.telemetry.Hit()
				if v, ok := cached.Value.(Iterable); ok {
					return v
				}
				return iterable
			}
			// Hit but expired: evict locally and fall through to miss
			// handling below.
			tctx.EvictLocalCacheEntry(fp)
			local = tctx.GetLocalCache()
		}
	}

	// 5. Miss.
	if local != nil {
		local.RecordMiss()
	}
	c.telemetry.Miss()

	// 6. Only a read-only, current, caching-relevant transaction may
	// trigger caching work.
	if tctx.IsMutable() || !tctx.IsCurrent() || !tctx.IsCachingRelevant() {
		return iterable
	}

	// 7. Deferred admission when the view is not sparse.
	if local != nil && !local.IsSparse() {
		if !c.deferred.Admit(fp, time.Now()) {
			return iterable
		}
	}

	// 8. Already on a caching-worker thread: materialise synchronously.
	if workpool.IsDispatcherThread(ctx) {
		c.telemetry.JobStarted()
		result, err := c.materializer.Materialize(ctx, fp)
		if err != nil {
			c.telemetry.JobInterrupted(interruptReason(err))
			return iterable
		}
		c.admit(fp, result)
		return result
	}

	// 9. Otherwise hand off to the background scheduler.
	job := newCachingJob(c, fp, iterable.ThreadSafe(), 0)
	if c.scheduler.Queue(job, workpool.Normal) {
		c.telemetry.JobEnqueued()
	} else {
		c.telemetry.JobNotEnqueued()
	}
	return iterable
}

// admit installs value into the current shared generation by
// compare-and-swap. It drops the value and returns false only when
// another swap lands between its own load and store; it does not
// compare against any earlier generation (the async job does that
// check itself before calling admit). Used by step 6 of the async job
// and by the synchronous path in step 8 above.
func (c *Controller) admit(fp cacheadapter.Fingerprint, value Iterable) bool {
	old := c.adapter.Load()
	next := old.WithPut(cacheadapter.CachedIterable{Fingerprint: fp, Value: value})
	return c.adapter.CompareAndSet(old, next)
}

// GetCachedCountByFingerprint looks up fp in the counts sub-cache,
// recording a count hit or miss.
func (c *Controller) GetCachedCountByFingerprint(fp cacheadapter.Fingerprint) (int64, bool) {
	count, ok := c.counts.Get(fp)
	if ok {
		c.telemetry.CountHit()
	} else {
		c.telemetry.CountMiss()
	}
	return count, ok
}

// GetCachedCountByIterable implements the iterable-driven variant of
// getCachedCount: on a miss, materialise synchronously when already on
// a caching thread; otherwise schedule an asynchronous counts job (if
// the iterable is thread-safe) and report the count unknown.
func (c *Controller) GetCachedCountByIterable(ctx context.Context, iterable Iterable) int64 {
	fp := iterable.Fingerprint()
	if count, ok := c.GetCachedCountByFingerprint(fp); ok {
		return count
	}

	if workpool.IsDispatcherThread(ctx) {
		result, err := c.materializer.Materialize(ctx, fp)
		if err != nil {
			c.telemetry.JobInterrupted(interruptReason(err))
			return -1
		}
		size := result.Size()
		_ = c.SetCachedCount(fp, size)
		return size
	}

	if !iterable.ThreadSafe() {
		return -1
	}
	job := newCountingJob(c, fp, 0)
	if c.scheduler.Queue(job, workpool.Normal) {
		c.telemetry.CountJobEnqueued()
	}
	return -1
}

// SetCachedCount inserts count as fp's cached cardinality.
func (c *Controller) SetCachedCount(fp cacheadapter.Fingerprint, count int64) error {
	return c.counts.Set(fp, count)
}

// IsCachingQueueFull implements the back-pressure rule of §4.H:
// refuse to enqueue more than proportional to the cache's target
// size. Comparing against the configured capacity rather than the
// current entry count matters for a cold, empty cache — otherwise the
// very first job would always find itself "over" a cache of size
// zero and abandon before ever populating it.
func (c *Controller) IsCachingQueueFull() bool {
	return c.scheduler.PendingJobs() > c.adapter.Load().Capacity()
}

func interruptReason(err error) string {
	var tle *errs.TooLongInstantiation
	if errors.As(err, &tle) {
		klog.Infof("caching job interrupted: %s", tle.Reason)
		return string(tle.Reason)
	}
	return "error"
}

// cancellationPolicyFor builds the policy a caching job installs on
// its transaction at step 4 of the on-execution algorithm.
func cancellationPolicyFor(isConsistent bool, generation cachepolicy.GenerationVersion, cachingTimeout, startCachingTimeout time.Duration) cachepolicy.Policy {
	return cachepolicy.Policy{
		IsConsistent:         isConsistent,
		StartTime:            time.Now(),
		CachingTimeout:       cachingTimeout,
		StartCachingTimeout:  startCachingTimeout,
		LocalCacheGeneration: generation,
	}
}
