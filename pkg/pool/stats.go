package pool

import "sync/atomic"

// PoolStats is a point-in-time snapshot of pool counters, exposed both
// in-process (Pool.Stats) and, when a metrics registry is attached, as
// Prometheus gauges/counters.
type PoolStats struct {
	Workers   int
	QueueSize int
	Submitted int64
	Completed int64
	Failed    int64
}

// statsCollector accumulates the lifetime submit/complete/fail counters
// backing PoolStats. Sizes (Workers, QueueSize) are read live from the pool
// rather than cached here.
type statsCollector struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func (s *statsCollector) recordSubmit() {
	s.submitted.Add(1)
}

func (s *statsCollector) recordCompletion() {
	s.completed.Add(1)
}

func (s *statsCollector) recordFailure() {
	s.failed.Add(1)
}
