package buffer

import (
	"context"
	"sync"
)

// Lazy resolves a BehaviorSubjectBuffer's initial value on demand, mirroring
// the spec's "an initial value (possibly wrapped in a promise)".
type Lazy func(ctx context.Context) (Value, error)

// BehaviorSubjectBuffer delivers, as a reader's first read, the current
// latest value (initial or last written) at the time of that read — not at
// attach time — and proceeds against an underlying SubjectBuffer afterward.
type BehaviorSubjectBuffer struct {
	mu        sync.Mutex
	hasInit   bool
	current   Value
	curErr    error
	lazy      Lazy
	lazyOnce  bool
	inner     *SubjectBuffer
	delivered map[uint64]bool
}

// NewBehaviorSubjectBuffer constructs a buffer with a plain initial value.
// Pass hasInit=false for a buffer with no initial value (first read then
// blocks until the first Write, exactly like a SubjectBuffer).
func NewBehaviorSubjectBuffer(initial Value, hasInit bool) *BehaviorSubjectBuffer {
	return &BehaviorSubjectBuffer{
		hasInit:   hasInit,
		current:   initial,
		inner:     NewSubjectBuffer(),
		delivered: make(map[uint64]bool),
	}
}

// NewBehaviorSubjectBufferLazy constructs a buffer whose initial value is
// resolved lazily on first need.
func NewBehaviorSubjectBufferLazy(lazy Lazy) *BehaviorSubjectBuffer {
	return &BehaviorSubjectBuffer{
		lazy:      lazy,
		inner:     NewSubjectBuffer(),
		delivered: make(map[uint64]bool),
	}
}

func (b *BehaviorSubjectBuffer) resolveInit(ctx context.Context) {
	b.mu.Lock()
	if b.hasInit || b.lazy == nil || b.lazyOnce {
		b.mu.Unlock()
		return
	}
	b.lazyOnce = true
	lazy := b.lazy
	b.mu.Unlock()

	v, err := lazy(ctx)
	b.mu.Lock()
	if err != nil {
		b.curErr = err
	} else {
		b.current = v
	}
	b.hasInit = true
	b.mu.Unlock()
}

func (b *BehaviorSubjectBuffer) Write(ctx context.Context, v Value) error {
	// Writes are always accepted regardless of reader count, since a
	// BehaviorSubject must retain the latest value for any future attacher.
	if err := b.inner.Write(ctx, v); err != nil {
		return err
	}
	b.mu.Lock()
	b.current = v
	b.curErr = nil
	b.hasInit = true
	b.mu.Unlock()
	return nil
}

func (b *BehaviorSubjectBuffer) Error(err error) error {
	if e := b.inner.Error(err); e != nil {
		return e
	}
	b.mu.Lock()
	b.curErr = err
	b.hasInit = true
	b.mu.Unlock()
	return nil
}

func (b *BehaviorSubjectBuffer) Complete() error { return b.inner.Complete() }

func (b *BehaviorSubjectBuffer) AttachReader() uint64 {
	id := b.inner.AttachReader()
	b.mu.Lock()
	b.delivered[id] = false
	b.mu.Unlock()
	return id
}

func (b *BehaviorSubjectBuffer) DetachReader(id uint64) {
	b.inner.DetachReader(id)
	b.mu.Lock()
	delete(b.delivered, id)
	b.mu.Unlock()
}

func (b *BehaviorSubjectBuffer) Read(ctx context.Context, id uint64) (Value, bool, error) {
	b.resolveInit(ctx)

	b.mu.Lock()
	if !b.delivered[id] {
		b.delivered[id] = true
		if b.hasInit {
			v, err := b.current, b.curErr
			b.mu.Unlock()
			if err != nil {
				return nil, true, err
			}
			return v, false, nil
		}
	}
	b.mu.Unlock()

	return b.inner.Read(ctx, id)
}

func (b *BehaviorSubjectBuffer) Peek(id uint64) (Value, bool, bool, error) {
	b.mu.Lock()
	if !b.delivered[id] && b.hasInit {
		v, err := b.current, b.curErr
		b.mu.Unlock()
		if err != nil {
			return nil, true, true, err
		}
		return v, true, false, nil
	}
	b.mu.Unlock()
	return b.inner.Peek(id)
}

func (b *BehaviorSubjectBuffer) Completed(id uint64) bool {
	b.mu.Lock()
	delivered := b.delivered[id]
	b.mu.Unlock()
	if !delivered {
		return false
	}
	return b.inner.Completed(id)
}

// Value returns the current latest value and whether one is set yet,
// backing Subject's BehaviorSubject.Value() getter from the spec's external
// interfaces.
func (b *BehaviorSubjectBuffer) Value() (Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.hasInit
}
