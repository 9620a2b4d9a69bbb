package streamflow

import "context"

// Value is the payload type flowing through streams and operators. The
// pipeline core is intentionally type-erased: generic constructor facades
// (Map, Filter, Subscribe, …) regain static typing at the edges.
type Value = any

// Iterator is the asynchronous pull contract every stream exposes: the
// Go realization of the async-iterable protocol the runtime is modeled on.
// Next blocks (respecting ctx) until a value, an error, or completion is
// available. Once done is true or err is non-nil, further calls to Next
// must keep returning done with no value.
type Iterator interface {
	Next(ctx context.Context) (v Value, done bool, err error)
}

// TryNexter is an optional capability: a synchronous, non-blocking peek
// that lets a caller avoid an unnecessary suspension when a value is
// already available. sliceIterator implements it; none of this package's
// combinators call it.
type TryNexter interface {
	// TryNext returns (v, true, false) if a value was already buffered,
	// (nil, false, true) if the iterator is exhausted, or (nil, false,
	// false) if nothing is available yet.
	TryNext() (v Value, ok bool, done bool)
}

// Pusher is an optional capability: upstream calls OnPush to register a
// hint fired whenever a value becomes synchronously available, waking a
// TryNext-driven drain loop without a full Next round-trip.
type Pusher interface {
	OnPush(fn func())
}

// Returner is an optional capability: closes the iterator early, releasing
// any upstream resources. Subscription.Unsubscribe and every combinator
// that tears down an inner stream call Return if the iterator implements it.
type Returner interface {
	Return() error
}

// CloseIterator calls Return on it if it implements Returner; otherwise it
// is a no-op. Centralizing this keeps every call site from repeating the
// type assertion.
func CloseIterator(it Iterator) error {
	if r, ok := it.(Returner); ok {
		return r.Return()
	}
	return nil
}

// funcIterator adapts a plain Next function (and optional return func) into
// an Iterator, the shape most operator factories build internally.
type funcIterator struct {
	next   func(ctx context.Context) (Value, bool, error)
	ret    func() error
	onPush func(fn func())
	metaBox
}

func newFuncIterator(next func(ctx context.Context) (Value, bool, error)) *funcIterator {
	return &funcIterator{next: next}
}

func (f *funcIterator) Next(ctx context.Context) (Value, bool, error) { return f.next(ctx) }

func (f *funcIterator) Return() error {
	if f.ret == nil {
		return nil
	}
	return f.ret()
}

func (f *funcIterator) OnPush(fn func()) {
	if f.onPush != nil {
		f.onPush(fn)
	}
}

// sliceIterator yields a fixed, finite slice of values, one emission stamp
// per value, then completes. Backs FromSlice / Of.
type sliceIterator struct {
	name   string
	values []Value
	idx    int
	sched  *Scheduler
	metaBox
}

// traceEmit starts a trace for v when a global tracer is active and
// stashes the resulting TraceID in this iterator's meta, so the first
// operator to read GetMeta(it) after Next can forward it onward.
func (s *sliceIterator) traceEmit(v Value) {
	id := traceSource(s.name, v)
	s.setMeta(Meta{TraceID: id})
}

func (s *sliceIterator) Next(ctx context.Context) (Value, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}
	if s.idx >= len(s.values) {
		return nil, true, nil
	}
	v := s.values[s.idx]
	s.idx++
	s.setStamp(s.sched.NextEmissionStamp())
	s.traceEmit(v)
	return v, false, nil
}

func (s *sliceIterator) TryNext() (Value, bool, bool) {
	if s.idx >= len(s.values) {
		return nil, false, true
	}
	v := s.values[s.idx]
	s.idx++
	s.setStamp(s.sched.NextEmissionStamp())
	s.traceEmit(v)
	return v, true, false
}

// emptyIterator yields no values and completes immediately.
type emptyIterator struct{}

func (emptyIterator) Next(context.Context) (Value, bool, error) { return nil, true, nil }

// neverIterator never produces a value and never completes until its
// context is cancelled.
type neverIterator struct{}

func (neverIterator) Next(ctx context.Context) (Value, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}
