package pool

import "golang.org/x/sync/semaphore"

// capacityLimiter bounds the number of ever-live workers at n, adapted from
// the bulkhead pattern's use of a weighted semaphore: acquiring a slot
// stands in for "a worker may be spawned", releasing stands in for "a
// retired worker has fully joined". Unlike a bulkhead protecting a
// contended resource, there is only ever one writer (the supervisor), so
// this is a belt-and-braces bound rather than a queueing mechanism --
// TryAcquire is always used, never the blocking Acquire.
type capacityLimiter struct {
	sem *semaphore.Weighted
}

func newCapacityLimiter(n int64) *capacityLimiter {
	return &capacityLimiter{sem: semaphore.NewWeighted(n)}
}

// tryAcquire attempts to claim one slot, returning false if none are free.
func (c *capacityLimiter) tryAcquire() bool {
	return c.sem.TryAcquire(1)
}

// release returns one slot to the pool. Must only be called after the
// corresponding worker's done channel has closed.
func (c *capacityLimiter) release() {
	c.sem.Release(1)
}
