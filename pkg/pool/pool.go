// Package pool implements an in-process task execution pool: tasks are
// accepted through plain, priority-ordered, and deadline-delayed ingress
// and dispatched to a dynamically sized worker population scaled between
// configured low and high watermarks.
//
// The ready queue and delayed queue are plain mutex-protected slices.
// Workers and the supervisor poll them with short sleeps rather than
// waiting on a channel or condition variable: the pool's testable
// invariants are stated in terms of poll-visible snapshots of worker and
// queue state (worker_count(), queue_size(), max_queue_size), and a
// blocking design would make those snapshots unobservable without extra
// instrumentation. This is a deliberate, documented choice, not an
// oversight -- see DESIGN.md.
package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taskpool/pkg/helper/errors"
	"taskpool/pkg/helper/log"
	"taskpool/pkg/metrics"
)

const (
	// MaxWorkers is the absolute ceiling on worker count, a build-time
	// constant per spec §6.
	MaxWorkers = 30
	// DefaultSupervisorTick is the supervisor's sleep between ticks.
	DefaultSupervisorTick = 1000 * time.Microsecond
	// DefaultWorkerIdleSleep is a worker's sleep when it finds the ready
	// queue empty.
	DefaultWorkerIdleSleep = 10 * time.Microsecond
)

// Pool is the public facade: submission and configuration surface that
// owns the ready queue, delayed queue, worker collection, and supervisor.
type Pool struct {
	id       string
	readyQ   *readyQueue
	delayedQ *delayedQueue
	capacity *capacityLimiter
	clock    Clock
	logger   log.Logger
	metrics  *metrics.Registry
	stats    *statsCollector

	configMu sync.Mutex
	low      int
	high     int

	maxQueueSize atomic.Int64

	workersMu    sync.Mutex
	workers      map[uint64]*worker
	nextWorkerID uint64

	workerIdleSleep time.Duration
	supervisorTick  time.Duration

	supervisor     *supervisor
	supervisorStop chan struct{}
	shutdownOnce   sync.Once
}

// NewPool constructs a pool and spawns exactly one worker, per spec §4.5.
// The supervisor goroutine does not start until Start is called, which
// keeps construction free of running background goroutines beyond the
// first worker. A nil logger defaults to a basic info-level logger, in the
// style of the teacher codebase's resilience components.
func NewPool(logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NewBasicLogger(log.InfoLevel)
	}
	id := uuid.NewString()
	logger = logger.WithField("pool_id", id)

	p := &Pool{
		id:              id,
		readyQ:          newReadyQueue(),
		delayedQ:        newDelayedQueue(),
		capacity:        newCapacityLimiter(MaxWorkers),
		clock:           SystemClock{},
		logger:          logger,
		stats:           &statsCollector{},
		low:             0,
		high:            1,
		workers:         make(map[uint64]*worker),
		workerIdleSleep: DefaultWorkerIdleSleep,
		supervisorTick:  DefaultSupervisorTick,
		supervisorStop:  make(chan struct{}),
	}
	p.supervisor = newSupervisor(p, p.supervisorTick)

	p.spawnWorker()
	p.maxQueueSize.Store(1 << uint(p.WorkerCount()))

	return p
}

// ID returns the pool's correlation identifier, attached to every log line
// it emits -- useful when a process runs more than one pool.
func (p *Pool) ID() string {
	return p.id
}

// WithMetrics attaches a Prometheus sink. A pool with none attached works
// identically, just unobserved.
func (p *Pool) WithMetrics(r *metrics.Registry) *Pool {
	p.metrics = r
	return p
}

// WithClock overrides the wall-clock source, for tests that need to
// simulate ErrClockUnavailable or control delayed-task promotion timing.
func (p *Pool) WithClock(c Clock) *Pool {
	p.clock = c
	return p
}

// SetLow sets the minimum worker count, clamped to not exceed the current
// high watermark.
func (p *Pool) SetLow(n int) {
	p.configMu.Lock()
	defer p.configMu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > p.high {
		n = p.high
	}
	p.low = n
}

// SetHigh sets the worker ceiling, clamped to [low+1, MaxWorkers].
func (p *Pool) SetHigh(n int) {
	p.configMu.Lock()
	defer p.configMu.Unlock()
	min := p.low + 1
	if min < 1 {
		min = 1
	}
	if n < min {
		n = min
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	p.high = n
}

func (p *Pool) watermarks() (low, high int) {
	p.configMu.Lock()
	defer p.configMu.Unlock()
	return p.low, p.high
}

// Submit inserts task per mode. ModePriority requires task to implement
// PrioritizedTask; ModeFIFO/ModeLIFO apply SetPriority as a documented side
// effect if the task happens to carry the capability, but do not require
// it.
func (p *Pool) Submit(task Task, mode SubmitMode) error {
	switch mode {
	case ModeFIFO:
		if pt, ok := task.(PrioritizedTask); ok {
			pt.SetPriority(0)
		}
		p.readyQ.pushBack(task)
		p.recordSubmit("fifo")
		return nil
	case ModeLIFO:
		if pt, ok := task.(PrioritizedTask); ok {
			pt.SetPriority(MaxPriority)
		}
		p.readyQ.pushFront(task)
		p.recordSubmit("lifo")
		return nil
	default:
		return p.SubmitPriority(task)
	}
}

// SubmitPriority submits task under the PRIORITY policy. task must
// implement PrioritizedTask or submission fails with ErrWrongCapability
// and no state is modified.
func (p *Pool) SubmitPriority(task Task) error {
	pt, ok := task.(PrioritizedTask)
	if !ok {
		return errors.WrongCapabilityf("task does not implement PrioritizedTask")
	}
	p.readyQ.insertBeforeFirstLower(pt, pt.GetPriority())
	p.recordSubmit("priority")
	return nil
}

// submitPriorityInternal is used by delayed-task promotion, which must
// never drop a task just because it lacks the priority capability: a task
// not meant to carry a priority is promoted at priority 0 rather than
// rejected, since ErrWrongCapability here would silently lose work spec.md
// never sanctions losing outside of shutdown.
func (p *Pool) submitPriorityInternal(task Task) {
	pt, ok := task.(PrioritizedTask)
	if !ok {
		pt = NewPrioritizedTask(task, 0)
	}
	p.readyQ.insertBeforeFirstLower(pt, pt.GetPriority())
}

func (p *Pool) recordSubmit(mode string) {
	p.stats.recordSubmit()
	if p.metrics != nil {
		p.metrics.RecordSubmit(mode)
	}
}

// SubmitDelayed records task for promotion to the ready queue once
// deadline has passed. There is no rejection path.
func (p *Pool) SubmitDelayed(task Task, deadline time.Time) {
	p.delayedQ.add(task, deadline)
	p.stats.recordSubmit()
	if p.metrics != nil {
		p.metrics.RecordSubmit("delayed")
	}
}

// WorkerCount returns the current number of live workers.
func (p *Pool) WorkerCount() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return len(p.workers)
}

// QueueSize returns the current ready-queue depth.
func (p *Pool) QueueSize() int {
	return p.readyQ.size()
}

// Stats returns a point-in-time snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.WorkerCount(),
		QueueSize: p.QueueSize(),
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Failed:    p.stats.failed.Load(),
	}
}

// Start launches the supervisor loop. Safe to call only once; subsequent
// calls are no-ops.
func (p *Pool) Start() {
	p.supervisor.start()
}

// Shutdown stops the supervisor, then retires every worker in turn (clear
// flag, join, release its capacity slot). Tasks still queued are dropped,
// never run.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.supervisor.stop()

		p.workersMu.Lock()
		toRetire := make([]*worker, 0, len(p.workers))
		for id, w := range p.workers {
			toRetire = append(toRetire, w)
			delete(p.workers, id)
		}
		p.workersMu.Unlock()

		for _, w := range toRetire {
			w.retire()
			w.join()
			p.capacity.release()
		}
	})
}

// spawnWorker acquires a capacity slot and launches a new worker goroutine.
// Returns false (and logs ErrResourceExhausted) if no slot is free.
func (p *Pool) spawnWorker() bool {
	if !p.capacity.tryAcquire() {
		err := errors.ResourceExhaustedf("no capacity slot available for new worker")
		p.logger.Error(err.Error(), err)
		return false
	}

	p.workersMu.Lock()
	id := p.nextWorkerID
	p.nextWorkerID++
	w := newWorker(id)
	p.workers[id] = w
	p.workersMu.Unlock()

	go w.run(p.readyQ, p.workerIdleSleep, p.logger, p.onWorkerTask)

	if p.metrics != nil {
		p.metrics.RecordScaleUp()
	}
	return true
}

// retireOneIdleWorker finds any one idle worker and retires it: clear its
// run flag, join it, and only then remove it from the collection and
// release its slot. No pool mutex is held during the join, and the worker
// stays in the collection until its goroutine has returned.
func (p *Pool) retireOneIdleWorker() bool {
	p.workersMu.Lock()
	var victim *worker
	var victimID uint64
	for id, w := range p.workers {
		if workerStatus(w.status.Load()) == workerIdle {
			victim = w
			victimID = id
			break
		}
	}
	p.workersMu.Unlock()

	if victim == nil {
		return false
	}

	victim.retire()
	victim.join()

	p.workersMu.Lock()
	delete(p.workers, victimID)
	p.workersMu.Unlock()
	p.capacity.release()

	if p.metrics != nil {
		p.metrics.RecordScaleDown()
	}
	return true
}

func (p *Pool) onWorkerTask(succeeded bool) {
	if succeeded {
		p.stats.recordCompletion()
		if p.metrics != nil {
			p.metrics.RecordCompletion()
		}
		return
	}
	p.stats.recordFailure()
	if p.metrics != nil {
		p.metrics.RecordFailure()
	}
}
