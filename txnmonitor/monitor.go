// Package txnmonitor implements the shared periodic-task timer of §5:
// a single ticker driving both the stuck-transaction monitor
// (component I) — logging and counting transactions stuck past a soft
// timeout, forcibly finishing ones stuck past a hard timeout — and
// hit-rate adjustment for the full-iterable and counts caches.
//
// Grounded on range-cache/range-cache.go's StartCacheGC/DeleteOldEntries
// pair: a ticker goroutine driving a lock-protected sweep, exiting
// cleanly on context cancellation. The monitor holds only a weak
// reference to the registry (Go 1.24's weak package) so it never
// pins the owning environment alive past its own lifetime.
package txnmonitor

import (
	"context"
	"time"
	"weak"

	"k8s.io/klog/v2"

	"github.com/rpcpool/patricia-cache/internal/txn"
)

// Recorder is the periodic-task telemetry the monitor depends on.
type Recorder interface {
	StuckTransaction()
	SetHitRate(ppm uint64)
	SetCountsHitRate(ppm uint64)
}

// HitRateEstimator is the subset of cacheadapter.Generation's
// hit-rate estimator the monitor drives on each tick.
type HitRateEstimator interface {
	AdjustHitRate()
	HitRate() uint64
}

// Monitor is the periodic task of §4.I and §5.
type Monitor struct {
	registry weak.Pointer[txn.Registry]

	checkFreq   time.Duration
	softTimeout time.Duration
	hardTimeout time.Duration
	recorder    Recorder

	cacheHitRate  func() HitRateEstimator
	countsHitRate func() HitRateEstimator
}

// New builds a monitor watching registry, ticking every checkFreq.
// softTimeout is the age past which a transaction with an attached
// creation stack is logged and counted; hardTimeout is the age past
// which it is forcibly finished.
func New(registry *txn.Registry, checkFreq, softTimeout, hardTimeout time.Duration, recorder Recorder) *Monitor {
	return &Monitor{
		registry:    weak.Make(registry),
		checkFreq:   checkFreq,
		softTimeout: softTimeout,
		hardTimeout: hardTimeout,
		recorder:    recorder,
	}
}

// WithHitRateSources attaches the generation/counts-cache accessors
// the shared timer should drive on every tick. cacheSource resolves
// the current full-iterable cache generation; countsSource resolves
// the counts sub-cache. Either may return nil if the component isn't
// wired in a given deployment (e.g. caching disabled).
func (m *Monitor) WithHitRateSources(cacheSource, countsSource func() HitRateEstimator) *Monitor {
	m.cacheHitRate = cacheSource
	m.countsHitRate = countsSource
	return m
}

// Run drives the periodic sweep until ctx is cancelled or the
// registry this monitor watches has been garbage-collected (the
// owning environment closed with no other live references).
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.checkFreq)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			reg := m.registry.Value()
			if reg == nil {
				return
			}
			m.sweep(reg, time.Now())
			m.adjustHitRates()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) adjustHitRates() {
	if m.cacheHitRate != nil {
		if est := m.cacheHitRate(); est != nil {
			est.AdjustHitRate()
			m.recorder.SetHitRate(est.HitRate())
		}
	}
	if m.countsHitRate != nil {
		if est := m.countsHitRate(); est != nil {
			est.AdjustHitRate()
			m.recorder.SetCountsHitRate(est.HitRate())
		}
	}
}

func (m *Monitor) sweep(reg *txn.Registry, now time.Time) {
	var toFinish []*txn.Stub
	reg.ForEachActive(func(s *txn.Stub) {
		age := s.Age(now)
		switch {
		case age > m.hardTimeout:
			toFinish = append(toFinish, s)
		case age > m.softTimeout && s.CreationStack != "":
			klog.Errorf(
				"stuck transaction %s: created %s ago at\n%s",
				s.ID, age, s.CreationStack,
			)
			m.recorder.StuckTransaction()
		}
	})
	for _, s := range toFinish {
		klog.Errorf("forcibly finishing transaction %s: exceeded hard timeout %s", s.ID, m.hardTimeout)
		reg.Finish(s)
	}
}
