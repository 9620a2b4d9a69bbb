package streamflow

import (
	"sync"
	"sync/atomic"
)

// Scheduler hands out strictly monotonic emission stamps and runs a
// cooperative queue of deferred work. streamflow does not run on a single
// OS thread the way the runtime it is modeled on does. Queued work runs
// only when Flush is called; the buffer package's semaphore and notifier
// wake their waiters directly and do not go through a Scheduler.
type Scheduler struct {
	stamp int64

	mu    sync.Mutex
	queue []func()
	cond  *sync.Cond
}

// NewScheduler constructs an independent Scheduler. Most callers should use
// the package-level DefaultScheduler instead.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// NextEmissionStamp returns a fresh, strictly monotonic integer. Sources
// call this once per produced value; merging operators use the stamp, never
// wall-clock time or resolution order, to decide which of two values
// happened first.
func (s *Scheduler) NextEmissionStamp() int64 {
	return atomic.AddInt64(&s.stamp, 1)
}

// Schedule enqueues fn to run on the next Flush. It never runs fn itself,
// so a caller can defer work instead of invoking it synchronously.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.cond.Signal()
	s.mu.Unlock()
}

// Flush drains every task currently queued, including tasks scheduled by
// tasks it runs, returning once the queue is empty, so a caller can reach
// a quiescent observation point.
func (s *Scheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

// DefaultScheduler is the package-wide scheduler used by streams and
// operators that do not carry an explicit one.
var DefaultScheduler = NewScheduler()

// NextEmissionStamp delegates to DefaultScheduler.
func NextEmissionStamp() int64 { return DefaultScheduler.NextEmissionStamp() }

// Flush delegates to DefaultScheduler.
func Flush() { DefaultScheduler.Flush() }

// Schedule delegates to DefaultScheduler.
func Schedule(fn func()) { DefaultScheduler.Schedule(fn) }
