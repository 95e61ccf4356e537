package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	poolerrors "taskpool/pkg/helper/errors"
	"taskpool/pkg/helper/log"
	"taskpool/pkg/metrics"
)

func testLogger() log.Logger {
	return log.NewBasicLogger(log.FatalLevel + 1)
}

// S1 - empty shutdown.
func TestPoolEmptyShutdown(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(1)
	p.SetHigh(4)
	p.Start()
	p.Shutdown()

	assert.Equal(t, 0, p.WorkerCount())
}

// S2 - FIFO single worker.
func TestPoolFIFOSingleWorkerOrder(t *testing.T) {
	p := NewPool(testLogger())
	p.SetHigh(1)
	p.SetLow(1)
	p.Start()
	defer p.Shutdown()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, p.Submit(TaskFunc(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}), ModeFIFO))
	}

	waitWithTimeout(t, &wg, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

// S3 - priority overtake.
func TestPoolPriorityOvertake(t *testing.T) {
	p := NewPool(testLogger())
	p.SetHigh(1)
	p.SetLow(1)
	p.Start()
	defer p.Shutdown()

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(4)

	require.NoError(t, p.Submit(TaskFunc(func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		record("blocker")
	}), ModeFIFO))

	time.Sleep(20 * time.Millisecond)

	tA := NewPrioritizedTask(TaskFunc(func() { defer wg.Done(); record("A") }), 1)
	tB := NewPrioritizedTask(TaskFunc(func() { defer wg.Done(); record("B") }), 5)
	tC := NewPrioritizedTask(TaskFunc(func() { defer wg.Done(); record("C") }), 3)

	require.NoError(t, p.SubmitPriority(tA))
	require.NoError(t, p.SubmitPriority(tB))
	require.NoError(t, p.SubmitPriority(tC))

	waitWithTimeout(t, &wg, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, []string{"blocker", "B", "C", "A"}, order)
}

// S4 - scale-up under load, scale-down after drain.
func TestPoolScalesUpUnderLoadAndBackDown(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(1)
	p.SetHigh(8)
	p.Start()
	defer p.Shutdown()

	var wg sync.WaitGroup
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(TaskFunc(func() {
			defer wg.Done()
			time.Sleep(50 * time.Millisecond)
		}), ModeFIFO))
	}

	require.Eventually(t, func() bool {
		return p.WorkerCount() == 8
	}, 500*time.Millisecond, 5*time.Millisecond)

	waitWithTimeout(t, &wg, 3*time.Second)

	require.Eventually(t, func() bool {
		return p.WorkerCount() == 1
	}, time.Second, 5*time.Millisecond)
}

// S5 - delayed promotion never fires early.
func TestPoolDelayedPromotion(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(1)
	p.SetHigh(1)
	p.Start()
	defer p.Shutdown()

	var ran atomic.Bool
	start := time.Now()
	p.SubmitDelayed(TaskFunc(func() { ran.Store(true) }), start.Add(200*time.Millisecond))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, ran.Load(), "delayed task ran before its deadline")

	require.Eventually(t, func() bool {
		return ran.Load()
	}, 300*time.Millisecond, 5*time.Millisecond)
	assert.True(t, time.Since(start) >= 200*time.Millisecond)
}

// S6 - watermark clamp sequence.
func TestPoolWatermarkClampSequence(t *testing.T) {
	p := NewPool(testLogger())

	p.SetLow(5)
	_, high := p.watermarks()
	assert.Equal(t, 1, high)
	low, _ := p.watermarks()
	assert.Equal(t, 1, low)

	p.SetHigh(3)
	low, high = p.watermarks()
	assert.Equal(t, 3, high)
	assert.Equal(t, 1, low)

	p.SetLow(5)
	low, _ = p.watermarks()
	assert.Equal(t, 3, low)
}

func TestPoolSubmitPriorityRejectsNonPrioritizedTask(t *testing.T) {
	p := NewPool(testLogger())
	defer p.Shutdown()

	err := p.Submit(TaskFunc(func() {}), ModePriority)
	assert.ErrorIs(t, err, poolerrors.ErrWrongCapability)
}

func TestPoolFIFOAppliesZeroPrioritySideEffect(t *testing.T) {
	p := NewPool(testLogger())
	defer p.Shutdown()

	task := &countingTask{priority: 9, ran: new(int)}
	require.NoError(t, p.Submit(task, ModeFIFO))
	assert.Equal(t, 0, task.priority)
}

func TestPoolLIFOAppliesMaxPrioritySideEffect(t *testing.T) {
	p := NewPool(testLogger())
	defer p.Shutdown()

	task := &countingTask{priority: 1, ran: new(int)}
	require.NoError(t, p.Submit(task, ModeLIFO))
	assert.Equal(t, MaxPriority, task.priority)
}

func TestPoolShutdownDropsQueuedTasks(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(0)
	p.SetHigh(1)

	// Retire the constructor-spawned worker so nothing drains the queue.
	for p.WorkerCount() > 0 {
		p.retireOneIdleWorker()
	}

	var ran atomic.Bool
	require.NoError(t, p.Submit(TaskFunc(func() { ran.Store(true) }), ModeFIFO))
	p.Shutdown()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestPoolStatsReflectsSubmissions(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(1)
	p.SetHigh(1)
	p.Start()
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(TaskFunc(func() { wg.Done() }), ModeFIFO))
	}
	waitWithTimeout(t, &wg, time.Second)

	require.Eventually(t, func() bool {
		return p.Stats().Completed == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), p.Stats().Submitted)
}

func TestPoolAbsorbsPanickingTask(t *testing.T) {
	p := NewPool(testLogger())
	p.SetLow(1)
	p.SetHigh(1)
	p.Start()
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(2)

	require.NoError(t, p.Submit(TaskFunc(func() {
		defer wg.Done()
		panic("boom")
	}), ModeFIFO))
	require.NoError(t, p.Submit(TaskFunc(func() {
		defer wg.Done()
	}), ModeFIFO))

	waitWithTimeout(t, &wg, time.Second)

	require.Eventually(t, func() bool {
		return p.Stats().Failed == 1
	}, time.Second, 5*time.Millisecond)
}

// erroringClock always fails, simulating ErrClockUnavailable without
// touching the system clock.
type erroringClock struct{}

func (erroringClock) Now() (time.Time, error) {
	return time.Time{}, errors.New("clock unavailable")
}

func TestPoolClockFailureAbortsPromotionWithoutDroppingTask(t *testing.T) {
	p := NewPool(testLogger()).WithClock(erroringClock{})
	p.SetLow(1)
	p.SetHigh(1)
	p.Start()
	defer p.Shutdown()

	var ran atomic.Bool
	p.SubmitDelayed(TaskFunc(func() { ran.Store(true) }), time.Now())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load(), "delayed task promoted despite an unavailable clock")
	assert.Equal(t, 1, p.delayedQ.size(), "task must remain queued, not dropped, across a failed clock read")
}

// SPEC_FULL.md's metrics-observability scenario: a pool wired via
// WithMetrics reports the same submitted/completed/failed counts through a
// Prometheus scrape as it does through Stats().
func TestPoolMetricsObservabilityMatchesStats(t *testing.T) {
	reg := metrics.NewRegistry()
	p := NewPool(testLogger()).WithMetrics(reg)
	p.SetLow(2)
	p.SetHigh(2)
	p.Start()
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(4)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(TaskFunc(func() { wg.Done() }), ModeFIFO))
	}
	require.NoError(t, p.Submit(TaskFunc(func() {
		defer wg.Done()
		panic("boom")
	}), ModeFIFO))

	waitWithTimeout(t, &wg, 2*time.Second)

	require.Eventually(t, func() bool {
		return p.Stats().Completed == 3 && p.Stats().Failed == 1
	}, time.Second, 5*time.Millisecond)

	stats := p.Stats()
	assert.Equal(t, float64(stats.Submitted), gatherCounterSum(t, reg, "taskpool_tasks_submitted_total"))
	assert.Equal(t, float64(stats.Completed), gatherCounterSum(t, reg, "taskpool_tasks_completed_total"))
	assert.Equal(t, float64(stats.Failed), gatherCounterSum(t, reg, "taskpool_tasks_failed_total"))
}

// gatherCounterSum scrapes reg the way a /metrics handler would and sums a
// counter family's value across every label combination, so a CounterVec
// and a bare Counter can be asserted on the same way.
func gatherCounterSum(t *testing.T, reg *metrics.Registry, family string) float64 {
	t.Helper()
	families, err := reg.GetRegistry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
