package txnmonitor

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/patricia-cache/internal/txn"
)

type countingRecorder struct {
	count           atomic.Int32
	hitRate         atomic.Uint64
	countsHitRate   atomic.Uint64
}

func (r *countingRecorder) StuckTransaction()              { r.count.Add(1) }
func (r *countingRecorder) SetHitRate(ppm uint64)           { r.hitRate.Store(ppm) }
func (r *countingRecorder) SetCountsHitRate(ppm uint64)     { r.countsHitRate.Store(ppm) }

func TestSweepCountsSoftTimeoutTransactionsWithStack(t *testing.T) {
	reg := txn.NewRegistry()
	s := reg.Begin(false, true, true, nil)
	s.CreatedAt = time.Now().Add(-time.Hour)
	s.CreationStack = "goroutine 1 [running]:\nmain.main()"

	rec := &countingRecorder{}
	m := New(reg, time.Minute, 10*time.Second, time.Hour*2, rec)
	m.sweep(reg, time.Now())

	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, 1, reg.Len(), "soft timeout alone must not finish the transaction")
}

func TestSweepIgnoresSoftTimeoutWithoutCreationStack(t *testing.T) {
	reg := txn.NewRegistry()
	s := reg.Begin(false, true, true, nil)
	s.CreatedAt = time.Now().Add(-time.Hour)

	rec := &countingRecorder{}
	m := New(reg, time.Minute, 10*time.Second, time.Hour*2, rec)
	m.sweep(reg, time.Now())

	require.Equal(t, int32(0), rec.count.Load())
}

func TestSweepFinishesHardTimeoutTransactions(t *testing.T) {
	reg := txn.NewRegistry()
	s := reg.Begin(false, true, true, nil)
	s.CreatedAt = time.Now().Add(-3 * time.Hour)

	rec := &countingRecorder{}
	m := New(reg, time.Minute, 10*time.Second, time.Hour, rec)
	m.sweep(reg, time.Now())

	require.Equal(t, 0, reg.Len(), "hard timeout must forcibly finish the transaction")
}

func TestRunExitsOnContextCancellation(t *testing.T) {
	reg := txn.NewRegistry()
	rec := &countingRecorder{}
	m := New(reg, 5*time.Millisecond, time.Hour, 2*time.Hour, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

type fakeEstimator struct {
	adjusted bool
	rate     uint64
}

func (f *fakeEstimator) AdjustHitRate() { f.adjusted = true }
func (f *fakeEstimator) HitRate() uint64 { return f.rate }

func TestAdjustHitRatesDrivesBothSources(t *testing.T) {
	reg := txn.NewRegistry()
	rec := &countingRecorder{}
	m := New(reg, time.Minute, time.Hour, 2*time.Hour, rec)

	cache := &fakeEstimator{rate: 750_000}
	counts := &fakeEstimator{rate: 250_000}
	m.WithHitRateSources(
		func() HitRateEstimator { return cache },
		func() HitRateEstimator { return counts },
	)

	m.adjustHitRates()

	require.True(t, cache.adjusted)
	require.True(t, counts.adjusted)
	require.Equal(t, uint64(750_000), rec.hitRate.Load())
	require.Equal(t, uint64(250_000), rec.countsHitRate.Load())
}

func TestAdjustHitRatesToleratesNilSources(t *testing.T) {
	reg := txn.NewRegistry()
	rec := &countingRecorder{}
	m := New(reg, time.Minute, time.Hour, 2*time.Hour, rec)
	require.NotPanics(t, m.adjustHitRates)
}

func TestRunExitsWhenRegistryIsGarbageCollected(t *testing.T) {
	rec := &countingRecorder{}
	var m *Monitor
	func() {
		reg := txn.NewRegistry()
		m = New(reg, 5*time.Millisecond, time.Hour, 2*time.Hour, rec)
	}()
	runtime.GC()

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit once its registry became unreachable")
	}
}
