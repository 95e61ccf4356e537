package pool

import (
	"time"

	"taskpool/pkg/helper/errors"
)

// supervisor runs the three-phase tick loop: worker scaling, delayed-task
// promotion, and a fixed sleep. It owns no state of its own beyond the
// ticking goroutine; the pool it belongs to owns every collection it
// touches.
type supervisor struct {
	pool    *Pool
	tick    time.Duration
	running chan struct{}
	done    chan struct{}
}

func newSupervisor(p *Pool, tick time.Duration) *supervisor {
	return &supervisor{
		pool:    p,
		tick:    tick,
		running: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start launches the tick loop. Calling start more than once is a no-op.
func (s *supervisor) start() {
	select {
	case <-s.running:
		return
	default:
	}
	close(s.running)
	go s.loop()
}

// stop signals the loop to exit and waits for it to return.
func (s *supervisor) stop() {
	select {
	case <-s.running:
	default:
		return
	}
	close(s.pool.supervisorStop)
	<-s.done
}

func (s *supervisor) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.pool.supervisorStop:
			return
		default:
		}

		s.scale()
		s.promoteDelayed()
		time.Sleep(s.tick)
	}
}

// scale implements spec §4.5(a): spawn up to low unconditionally, spawn one
// on-demand worker past the pressure threshold, and retire at most one idle
// worker per tick when the queue has drained. maxQueueSize is recomputed
// afterward as 2^workers.size(), giving the scale-up threshold hysteresis:
// the more workers already running, the more queue pressure is required to
// add another.
func (s *supervisor) scale() {
	p := s.pool

	p.workersMu.Lock()
	count := len(p.workers)
	low, high := p.watermarks()
	p.workersMu.Unlock()

	for count < low {
		if !p.spawnWorker() {
			break
		}
		count++
	}

	if p.readyQ.size() > int(p.maxQueueSize.Load()) && count < high {
		if p.spawnWorker() {
			count++
		}
	}

	if p.readyQ.size() == 0 && count > low {
		p.retireOneIdleWorker()
	}

	p.workersMu.Lock()
	newCount := len(p.workers)
	p.workersMu.Unlock()
	p.maxQueueSize.Store(1 << uint(newCount))

	if p.metrics != nil {
		p.metrics.SetWorkerPoolSize(newCount)
		p.metrics.SetWorkerPoolQueued(p.readyQ.size())
	}
}

// promoteDelayed implements spec §4.4's supervisor-side promotion pass: due
// entries are moved from the delayed queue into the ready queue via the
// default PRIORITY path. A clock failure aborts the entire pass, retried on
// the next tick.
func (s *supervisor) promoteDelayed() {
	p := s.pool

	now, err := p.clock.Now()
	if err != nil {
		wrapped := errors.ClockUnavailablef("supervisor: wall-clock read failed")
		p.logger.WithError(err).Error(wrapped.Error(), wrapped)
		return
	}

	due := p.delayedQ.promoteDue(now)
	for _, t := range due {
		p.submitPriorityInternal(t)
	}
}
