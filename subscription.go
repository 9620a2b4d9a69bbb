package streamflow

import (
	"context"
	"sync"
)

// Observer receives the three callbacks a Subscription can deliver. Next
// and Complete are mutually exclusive with Error: after the first Error (or
// Complete) no further callback fires.
type Observer struct {
	Next     func(v Value)
	Error    func(err error)
	Complete func()
}

// Subscription represents one active pull loop over a Stream's Iterator.
// Unsubscribe is idempotent and safe to call from any goroutine, including
// from within an Observer callback.
type Subscription struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	it     Iterator
	done   chan struct{}
	closed bool
}

// Unsubscribe calls Return on the underlying iterator (closing upstream)
// and cancels the pull loop's context. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.mu.Unlock()
	sub.cancel()
	_ = CloseIterator(sub.it)
}

// Closed reports whether this subscription has reached a terminal state,
// whether by explicit Unsubscribe, upstream error, or completion.
func (sub *Subscription) Closed() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.closed
}

// Done returns a channel closed once the pull loop has exited.
func (sub *Subscription) Done() <-chan struct{} { return sub.done }

// Subscribe starts a new iteration over s, pulling in a loop until the
// iterator completes, errors, or the subscription is unsubscribed.
func (s *Stream) Subscribe(observer Observer) *Subscription {
	return s.SubscribeContext(context.Background(), observer)
}

// SubscribeContext is Subscribe with an explicit parent context; cancelling
// ctx has the same effect as calling Unsubscribe.
func (s *Stream) SubscribeContext(ctx context.Context, observer Observer) *Subscription {
	runCtx, cancel := context.WithCancel(ctx)
	it := s.Iterate(runCtx)
	sub := &Subscription{cancel: cancel, it: it, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			v, done, err := it.Next(runCtx)
			if err != nil {
				sub.terminate(func() {
					if observer.Error != nil {
						observer.Error(err)
					}
				})
				return
			}
			if done {
				sub.terminate(func() {
					if observer.Complete != nil {
						observer.Complete()
					}
				})
				return
			}
			if meta, ok := GetMeta(it); ok {
				traceDelivered(meta.TraceID)
			}
			if observer.Next != nil {
				observer.Next(v)
			}
		}
	}()

	return sub
}

func (sub *Subscription) terminate(fire func()) {
	sub.mu.Lock()
	already := sub.closed
	sub.closed = true
	sub.mu.Unlock()
	if !already {
		fire()
	}
}
