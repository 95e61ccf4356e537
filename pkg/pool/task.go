package pool

// MaxPriority is the sentinel priority applied to LIFO submissions. Any value
// strictly greater than all legitimate application priorities works; the
// source this pool is modeled on used 100.
const MaxPriority = 100

// Task is the minimal capability a pool can dispatch: a unit of work that
// runs exactly once and returns no value. Implementations must not block
// indefinitely; a faulty Run must still return (or panic, which the worker
// recovers from) for the pool to retain liveness.
type Task interface {
	Run()
}

// PrioritizedTask is the optional capability required for ModePriority
// submission. GetPriority reports the task's current priority (0 = lowest);
// SetPriority is called by the pool itself, both to honor the caller's
// ModePriority value and as the documented side effect of ModeFIFO/ModeLIFO
// submission.
type PrioritizedTask interface {
	Task
	GetPriority() int
	SetPriority(int)
}

// TaskFunc adapts a plain function to the Task interface. It never
// implements PrioritizedTask; submitting a bare TaskFunc under ModePriority
// fails with ErrWrongCapability, exactly like any other non-prioritized task.
type TaskFunc func()

// Run invokes f.
func (f TaskFunc) Run() {
	f()
}

// priorityTask wraps a Task with a mutable priority field. It is what
// NewPrioritizedTask returns, and what the delayed-promotion path constructs
// (at priority 0) when a promoted task does not already carry the
// PrioritizedTask capability (promotion always re-submits via PRIORITY).
// SubmitPriority never wraps; it rejects such tasks.
type priorityTask struct {
	Task
	priority int
}

// NewPrioritizedTask wraps t so it carries a priority, for callers whose
// task type does not already implement PrioritizedTask but who still want
// to submit under ModePriority.
func NewPrioritizedTask(t Task, priority int) PrioritizedTask {
	return &priorityTask{Task: t, priority: priority}
}

func (p *priorityTask) GetPriority() int   { return p.priority }
func (p *priorityTask) SetPriority(v int)  { p.priority = v }

// SubmitMode selects the insertion policy for Submit.
type SubmitMode int

const (
	// ModeFIFO inserts at the back and sets the task's priority to 0 if it
	// carries the capability.
	ModeFIFO SubmitMode = iota
	// ModeLIFO inserts at the front and sets the task's priority to
	// MaxPriority if it carries the capability.
	ModeLIFO
	// ModePriority performs a stable linear-scan insert by priority. The
	// task must implement PrioritizedTask or submission fails with
	// ErrWrongCapability.
	ModePriority
)
