// Package coroutine adapts the teacher's pool/worker-lease design to the
// streaming runtime's pooled-worker lease contract: Hire yields one
// HiredWorker, dedicated until Release, leased from a WorkerPool. The
// package also provides Pool, a standalone get/put pool of reusable values.
package coroutine

import "sync"

// Pool is the same two-method contract the teacher's pool package exposes:
// Get a worker, Put it back. Either backing implementation below can be
// swapped for the other. Hire does not use Pool; it leases through
// WorkerPool.
type Pool interface {
	Get() any
	Put(any)
}

// NewDynamic wraps sync.Pool: unbounded, reclaimable under GC pressure.
// Grounded on the teacher's pool/dynamic.go, which is this verbatim.
func NewDynamic(newFn func() any) Pool {
	return &sync.Pool{New: newFn}
}

// fixed is a bounded pool of at most capacity live workers, grounded on the
// teacher's pool/fixed.go three-tier (available / all / overflow buf)
// scheme.
type fixed struct {
	available chan any
	all       chan any
	buf       chan any
	newFn     func() any
}

// NewFixed builds a Pool that creates at most capacity workers via newFn,
// recycling released ones instead of growing further.
func NewFixed(capacity uint, newFn func() any) Pool {
	return &fixed{
		available: make(chan any, capacity),
		all:       make(chan any, capacity),
		buf:       make(chan any, 1024),
		newFn:     newFn,
	}
}

func (p *fixed) Get() any {
	select {
	case el := <-p.available:
		return el
	case el := <-p.buf:
		return el
	default:
		var el any
		if len(p.all) < cap(p.all) {
			el = p.newFn()
		} else {
			el = <-p.all
		}
		select {
		case p.all <- el:
		case p.buf <- el:
		default:
		}
		return el
	}
}

func (p *fixed) Put(el any) {
	select {
	case p.available <- el:
	case p.all <- el:
	case p.buf <- el:
	default:
	}
}
