package pool

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"taskpool/pkg/helper/errors"
	"taskpool/pkg/helper/log"
)

// workerStatus is the observable state of a worker, written only by the
// worker itself and read by the supervisor.
type workerStatus int32

const (
	workerIdle workerStatus = iota
	workerRunning
	workerFinished
)

// worker is a long-lived task executor. It is the Go realization of an OS
// executor thread: a goroutine paired with a done channel that is closed
// exactly once when the goroutine returns, the analogue of joining a
// thread. The supervisor must not drop its reference to a worker until
// done has closed.
type worker struct {
	id      uint64
	status  atomic.Int32
	runFlag atomic.Bool
	done    chan struct{}
}

func newWorker(id uint64) *worker {
	w := &worker{id: id, done: make(chan struct{})}
	w.runFlag.Store(true)
	w.status.Store(int32(workerIdle))
	return w
}

// retire clears the run flag. The worker observes this at the top of its
// next loop iteration, before taking another task, and exits; it does not
// terminate immediately, and a task already running finishes first.
func (w *worker) retire() {
	w.runFlag.Store(false)
}

// join blocks until the worker's goroutine has returned.
func (w *worker) join() {
	<-w.done
}

// run is the worker's main loop, launched as its own goroutine by the pool.
// It never executes a task while holding rq's mutex: the task is taken
// under the lock, then run after the lock is released. onTask, if non-nil,
// is invoked after every task with whether it completed without panicking.
func (w *worker) run(rq *readyQueue, idleSleep time.Duration, logger log.Logger, onTask func(ok bool)) {
	defer close(w.done)

	for {
		runtime.Gosched()

		if !w.runFlag.Load() {
			w.status.Store(int32(workerFinished))
			return
		}

		task, ok := rq.tryPopFront()
		if !ok {
			w.status.Store(int32(workerIdle))
			time.Sleep(idleSleep)
			continue
		}

		w.status.Store(int32(workerRunning))
		succeeded := w.runTask(task, logger)
		w.status.Store(int32(workerIdle))

		if onTask != nil {
			onTask(succeeded)
		}
	}
}

// runTask executes task.Run(), converting a panic into a logged
// ErrTaskFault so it never propagates past the worker and the pool remains
// live against faulty tasks. Returns false if the task panicked.
func (w *worker) runTask(task Task, logger log.Logger) (succeeded bool) {
	succeeded = true
	defer func() {
		if r := recover(); r != nil {
			succeeded = false
			err := errors.TaskFaultf("worker %d: task panicked: %v", w.id, r)
			if logger != nil {
				logger.WithField("worker_id", w.id).Error(fmt.Sprintf("%v", err), err)
			}
		}
	}()
	task.Run()
	return
}
