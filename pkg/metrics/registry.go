// Package metrics wraps a Prometheus registry with the gauges and counters
// a running pool reports: worker/queue sizes and submission/completion/
// failure/scaling event counts. A Pool with no Registry attached behaves
// identically, just unobserved.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry wraps a dedicated *prometheus.Registry with pool-specific
// metrics. A fresh Registry per pool (rather than the global default
// registry) keeps multiple pools in one process from colliding on metric
// names.
type Registry struct {
	registry *prometheus.Registry

	workerPoolSize   prometheus.Gauge
	workerPoolQueued prometheus.Gauge

	tasksSubmittedTotal *prometheus.CounterVec
	tasksCompletedTotal prometheus.Counter
	tasksFailedTotal    prometheus.Counter
	scalingEventsTotal  *prometheus.CounterVec
}

// NewRegistry creates a Registry with all pool metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		workerPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_worker_pool_size",
			Help: "Current number of workers in the pool.",
		}),
		workerPoolQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_worker_pool_queued",
			Help: "Current number of tasks waiting in the ready queue.",
		}),
		tasksSubmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskpool_tasks_submitted_total",
			Help: "Total number of tasks submitted, by submission mode.",
		}, []string{"mode"}),
		tasksCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_completed_total",
			Help: "Total number of tasks that returned without panicking.",
		}),
		tasksFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_tasks_failed_total",
			Help: "Total number of tasks whose Run() panicked.",
		}),
		scalingEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskpool_scaling_events_total",
			Help: "Total number of supervisor-driven worker spawn/retire events.",
		}, []string{"direction"}),
	}

	r.registry.MustRegister(
		r.workerPoolSize,
		r.workerPoolQueued,
		r.tasksSubmittedTotal,
		r.tasksCompletedTotal,
		r.tasksFailedTotal,
		r.scalingEventsTotal,
	)

	return r
}

// GetRegistry returns the underlying Prometheus registry, for wiring into
// an HTTP /metrics handler or a test's promhttp/testutil scrape.
func (r *Registry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// SetWorkerPoolSize records the current worker count.
func (r *Registry) SetWorkerPoolSize(size int) {
	r.workerPoolSize.Set(float64(size))
}

// SetWorkerPoolQueued records the current ready-queue depth.
func (r *Registry) SetWorkerPoolQueued(queued int) {
	r.workerPoolQueued.Set(float64(queued))
}

// RecordSubmit increments the submitted counter for the given mode.
func (r *Registry) RecordSubmit(mode string) {
	r.tasksSubmittedTotal.WithLabelValues(mode).Inc()
}

// RecordCompletion increments the completed-task counter.
func (r *Registry) RecordCompletion() {
	r.tasksCompletedTotal.Inc()
}

// RecordFailure increments the failed-task (panicked) counter.
func (r *Registry) RecordFailure() {
	r.tasksFailedTotal.Inc()
}

// RecordScaleUp increments the scale-up scaling-event counter.
func (r *Registry) RecordScaleUp() {
	r.scalingEventsTotal.WithLabelValues("up").Inc()
}

// RecordScaleDown increments the scale-down scaling-event counter.
func (r *Registry) RecordScaleDown() {
	r.scalingEventsTotal.WithLabelValues("down").Inc()
}
