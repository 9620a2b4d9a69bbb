package streamflow

import "context"

// Stream is a named, restartable producer of Values. Calling Iterate
// instantiates one fresh Iterator per call — exactly as pipe re-runs the
// whole operator chain for every subscription.
type Stream struct {
	Name    string
	factory func(ctx context.Context) Iterator
	sched   *Scheduler
}

// New constructs a Stream from a factory invoked once per Iterate call
// (equivalently, once per subscription).
func New(name string, factory func(ctx context.Context) Iterator) *Stream {
	return &Stream{Name: name, factory: factory, sched: DefaultScheduler}
}

// WithScheduler returns a copy of s that records sched instead of the
// default one. The copy's iterators come from the same factory as s, so
// sources such as FromSlice and Of still stamp from DefaultScheduler.
func (s *Stream) WithScheduler(sched *Scheduler) *Stream {
	cp := *s
	cp.sched = sched
	return &cp
}

// Iterate obtains a fresh, independent Iterator for this stream: the Go
// stand-in for `stream[Symbol.asyncIterator]()`.
func (s *Stream) Iterate(ctx context.Context) Iterator {
	return s.factory(ctx)
}

// FromSlice builds a finite Stream yielding each element of values in
// order, then completing.
func FromSlice[T any](name string, values []T) *Stream {
	return New(name, func(ctx context.Context) Iterator {
		boxed := make([]Value, len(values))
		for i, v := range values {
			boxed[i] = v
		}
		return &sliceIterator{name: name, values: boxed, sched: DefaultScheduler}
	})
}

// Of builds a finite Stream over the given literal values.
func Of[T any](values ...T) *Stream {
	return FromSlice("of", values)
}

// Empty builds a Stream that completes immediately without emitting.
func Empty() *Stream {
	return New("empty", func(context.Context) Iterator { return emptyIterator{} })
}

// Never builds a Stream that neither emits nor completes until its
// subscription's context is cancelled.
func Never() *Stream {
	return New("never", func(context.Context) Iterator { return neverIterator{} })
}

// FromChannel builds a Stream that relays values received on ch until ch is
// closed, at which point the stream completes. Each relayed value is
// stamped at the moment it is received, not when it was sent.
func FromChannel[T any](name string, ch <-chan T) *Stream {
	return New(name, func(ctx context.Context) Iterator {
		it := newFuncIterator(nil)
		it.next = func(ctx context.Context) (Value, bool, error) {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil, true, nil
				}
				it.setStamp(NextEmissionStamp())
				return v, false, nil
			}
		}
		return it
	})
}

// Pipe instantiates each operator in order, left to right, returning a new
// Stream whose Iterate re-runs the whole chain. Pipe() with no operators is
// the identity: s.Pipe() observes the same sequence as s.
func (s *Stream) Pipe(ops ...Operator) *Stream {
	if len(ops) == 0 {
		return s
	}
	name := s.Name
	return New(name, func(ctx context.Context) Iterator {
		var it Iterator = s.factory(ctx)
		for i, op := range ops {
			it = op.apply(ctx, it, i)
		}
		return it
	})
}
