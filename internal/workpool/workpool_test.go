package workpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	key        uint64
	consistent bool
	started    *atomic.Int32
	done       chan struct{}
}

func (j countingJob) Key() uint64      { return j.key }
func (j countingJob) Consistent() bool { return j.consistent }
func (j countingJob) Run(ctx context.Context) {
	j.started.Add(1)
	close(j.done)
}

func TestQueueRunsJob(t *testing.T) {
	p := New(2, 8)
	defer p.Close()

	var started atomic.Int32
	done := make(chan struct{})
	ok := p.Queue(countingJob{key: 1, consistent: true, started: &started, done: done}, Normal)
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	require.Equal(t, int32(1), started.Load())
}

func TestQueueCoalescesEqualIdentity(t *testing.T) {
	p := New(2, 8)
	defer p.Close()

	block := make(chan struct{})
	var started atomic.Int32

	blockingJob := blockingCountingJob{key: 42, started: &started, release: block}
	require.True(t, p.Queue(blockingJob, Normal))

	// Give the first job a moment to be picked up; its pending mark,
	// set by Queue, stays until its Run returns.
	time.Sleep(50 * time.Millisecond)

	dup := p.Queue(blockingJob, Normal)
	require.False(t, dup, "equal-identity job must coalesce while pending")

	close(block)
}

type blockingCountingJob struct {
	key     uint64
	started *atomic.Int32
	release chan struct{}
}

func (j blockingCountingJob) Key() uint64      { return j.key }
func (j blockingCountingJob) Consistent() bool { return true }
func (j blockingCountingJob) Run(ctx context.Context) {
	j.started.Add(1)
	<-j.release
}

func TestIsDispatcherThreadInsideWorker(t *testing.T) {
	p := New(2, 8)
	defer p.Close()

	result := make(chan bool, 1)
	job := dispatcherCheckJob{result: result}
	require.True(t, p.Queue(job, Normal))

	select {
	case isDispatcher := <-result:
		require.True(t, isDispatcher)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	require.False(t, IsDispatcherThread(context.Background()))
}

// TestBelowNormalRunsBehindQueuedNormalWork exercises the priority
// dispatcher directly: given both a BelowNormal and a Normal job
// pending at once, the Normal one must run first, matching the §6/§7
// "re-enqueue at lower priority" guarantee on ReadonlyConflict retries.
//
// The pool is built with a single consistent worker and a
// one-deep buffer at every stage, so the test can force the dispatcher
// into a known-blocked state before queuing either tracked job:
//  1. job 1 occupies the sole worker (blocked on release).
//  2. job 2 (a no-op) is forced into the now-vacated one-slot dispatch
//     channel, filling it.
//  3. Queuing job 3 (Normal) blocks until the dispatcher has drained
//     job 2 out of the normal channel — and the dispatcher's
//     receive-then-forward step is one atomic sequence within its own
//     loop iteration, so by the time that call returns, job 2 is
//     already sitting in the (still full) dispatch channel and the
//     dispatcher is stuck trying to forward job 3 into it.
//  4. With the dispatcher provably blocked on that send, queuing job 4
//     (BelowNormal) cannot race with it being read.
// Releasing job 1 then drains the pipeline in the only order these
// invariants allow: job 2, job 3, job 4.
func TestBelowNormalRunsBehindQueuedNormalWork(t *testing.T) {
	p := New(2, 1)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, p.Queue(blockingConsistentJob{key: 1, started: started, release: release}, Normal))
	<-started

	require.True(t, p.Queue(noopJob{key: 2}, Normal))

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)
	record := func(label string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			done <- struct{}{}
		}
	}

	require.True(t, p.Queue(recordingJob{key: 3, run: record("normal")}, Normal))
	require.True(t, p.Queue(recordingJob{key: 4, run: record("below")}, BelowNormal))

	close(release)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("queued jobs did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"normal", "below"}, order)
}

type blockingConsistentJob struct {
	key     uint64
	started chan struct{}
	release chan struct{}
}

func (j blockingConsistentJob) Key() uint64      { return j.key }
func (j blockingConsistentJob) Consistent() bool { return true }
func (j blockingConsistentJob) Run(ctx context.Context) {
	close(j.started)
	<-j.release
}

type noopJob struct{ key uint64 }

func (j noopJob) Key() uint64          { return j.key }
func (j noopJob) Consistent() bool     { return true }
func (j noopJob) Run(ctx context.Context) {}

type recordingJob struct {
	key uint64
	run func(context.Context)
}

func (j recordingJob) Key() uint64          { return j.key }
func (j recordingJob) Consistent() bool     { return true }
func (j recordingJob) Run(ctx context.Context) { j.run(ctx) }

type dispatcherCheckJob struct {
	result chan bool
}

func (dispatcherCheckJob) Key() uint64      { return 7 }
func (dispatcherCheckJob) Consistent() bool { return false }
func (j dispatcherCheckJob) Run(ctx context.Context) {
	j.result <- IsDispatcherThread(ctx)
}
