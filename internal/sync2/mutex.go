// Package sync2 provides the small cooperative synchronisation primitives
// the streaming core is built on. A counting semaphore is not among them:
// that primitive is golang.org/x/sync/semaphore.Weighted, used directly by
// the buffer package instead of being reimplemented here.
package sync2

import "sync"

// Mutex is a mutual-exclusion lock whose Acquire returns a release function,
// so call sites read "acquire, defer release()" instead of matching a
// separate Unlock call by hand. Waiters are served in the order the
// underlying runtime scheduler wakes them; Go's sync.Mutex does not
// guarantee strict FIFO under contention, but it does not starve waiters
// either, which is the property callers in this package rely on.
type Mutex struct {
	mu sync.Mutex
}

// Acquire blocks until the lock is held by the caller and returns a function
// that releases it. The returned function is safe to call exactly once.
func (m *Mutex) Acquire() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

// TryAcquire attempts to acquire the lock without blocking. On success it
// returns a release function and true; otherwise it returns (nil, false).
func (m *Mutex) TryAcquire() (func(), bool) {
	if m.mu.TryLock() {
		return m.mu.Unlock, true
	}
	return nil, false
}
