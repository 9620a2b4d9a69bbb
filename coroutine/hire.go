package coroutine

import (
	"context"
	"sync"

	"github.com/ygrebnov/streamflow"
)

// WorkerID identifies one leased slot in a WorkerPool.
type WorkerID string

// Message is a worker-originated payload, broadcast on the pool's Messages
// channel and filtered by Hire down to the one leased WorkerID.
type Message struct {
	WorkerID WorkerID
	Data     any
}

// WorkerErr is a worker-originated error, broadcast the same way Message is.
type WorkerErr struct {
	WorkerID WorkerID
	Err      error
}

// WorkerPool is the external collaborator contract §4.7 requires: acquire
// one idle worker, assign it task data, return it when done. Messages and
// Errors are process-wide broadcast channels that Hire filters by
// WorkerID — the Go stand-in for scoped event listeners.
type WorkerPool interface {
	GetIdleWorker(ctx context.Context) (worker any, id WorkerID, err error)
	AssignTask(ctx context.Context, id WorkerID, data any) (result any, err error)
	ReturnWorker(id WorkerID)
	Messages() <-chan Message
	Errors() <-chan WorkerErr
}

// HiredWorker is the handle yielded by Hire: an exclusive lease on one pool
// worker, dedicated to its stream's subscription until Release.
type HiredWorker struct {
	WorkerID WorkerID

	pool     WorkerPool
	once     sync.Once
	released chan struct{}
}

// SendTask assigns data to this worker, scoped to its WorkerID.
func (h *HiredWorker) SendTask(ctx context.Context, data any) (any, error) {
	select {
	case <-h.released:
		return nil, streamflow.ErrWorkerReleased
	default:
	}
	return h.pool.AssignTask(ctx, h.WorkerID, data)
}

// Release returns the worker to the pool. Idempotent: a second call, or a
// call after an automatic abort, is a no-op.
func (h *HiredWorker) Release() {
	h.once.Do(func() {
		close(h.released)
		h.pool.ReturnWorker(h.WorkerID)
	})
}

// Hire acquires one idle worker from pool, yields a HiredWorker handle, and
// keeps the stream open — attaching message/error listeners scoped to the
// leased WorkerID — until Release is called or the subscription's context
// is cancelled, at which point the worker is returned automatically.
//
// onMessage and onError, if non-nil, are invoked for every broadcast
// message/error addressed to this worker while it is held. An error event
// triggers an automatic Release (abort) but never a double release.
func Hire(pool WorkerPool, task any, onMessage func(any), onError func(error)) *streamflow.Stream {
	return streamflow.New("hire", func(ctx context.Context) streamflow.Iterator {
		var mu sync.Mutex
		var handle *HiredWorker
		var acquireErr error
		delivered := false
		listenersDone := make(chan struct{})

		acquire := func() {
			_, id, err := pool.GetIdleWorker(ctx)
			if err != nil {
				mu.Lock()
				acquireErr = err
				mu.Unlock()
				close(listenersDone)
				return
			}
			h := &HiredWorker{WorkerID: id, pool: pool, released: make(chan struct{})}
			mu.Lock()
			handle = h
			mu.Unlock()

			go func() {
				defer close(listenersDone)
				for {
					select {
					case <-h.released:
						return
					case <-ctx.Done():
						h.Release()
						return
					case msg, ok := <-pool.Messages():
						if !ok {
							continue
						}
						if msg.WorkerID == id && onMessage != nil {
							onMessage(msg.Data)
						}
					case werr, ok := <-pool.Errors():
						if !ok {
							continue
						}
						if werr.WorkerID == id {
							if onError != nil {
								onError(werr.Err)
							}
							h.Release()
							return
						}
					}
				}
			}()
		}

		var once sync.Once
		return &hireIterator{
			task: task,
			next: func(ctx context.Context) (streamflow.Value, bool, error) {
				once.Do(acquire)
				mu.Lock()
				err := acquireErr
				mu.Unlock()
				if err != nil {
					return nil, false, err
				}
				if !delivered {
					delivered = true
					mu.Lock()
					h := handle
					mu.Unlock()
					return h, false, nil
				}
				select {
				case <-listenersDone:
					return nil, true, nil
				case <-ctx.Done():
					mu.Lock()
					h := handle
					mu.Unlock()
					if h != nil {
						h.Release()
					}
					return nil, false, ctx.Err()
				}
			},
			ret: func() error {
				mu.Lock()
				h := handle
				mu.Unlock()
				if h != nil {
					h.Release()
				}
				return nil
			},
		}
	})
}

type hireIterator struct {
	task any
	next func(ctx context.Context) (streamflow.Value, bool, error)
	ret  func() error
}

func (h *hireIterator) Next(ctx context.Context) (streamflow.Value, bool, error) { return h.next(ctx) }
func (h *hireIterator) Return() error                                           { return h.ret() }
