package buffer

import (
	"context"
	"sync"

	"github.com/ygrebnov/streamflow/internal/sync2"
)

// SubjectBuffer implements Buffer with no replay: a reader attached at time t
// sees only values written at times >= t. When no readers are attached,
// Write is a no-op — values are not accumulated for nobody.
type SubjectBuffer struct {
	mu       sync.Mutex
	items    []item
	base     int // absolute index of items[0]
	readers  map[uint64]int
	nextID   uint64
	erred    bool
	complete bool
	notifier sync2.Notifier
}

// NewSubjectBuffer constructs an empty SubjectBuffer.
func NewSubjectBuffer() *SubjectBuffer {
	return &SubjectBuffer{readers: make(map[uint64]int)}
}

func (b *SubjectBuffer) Write(_ context.Context, v Value) error {
	b.mu.Lock()
	if b.erred {
		b.mu.Unlock()
		return ErrWriteAfterError
	}
	if b.complete {
		b.mu.Unlock()
		return ErrWriteAfterComplete
	}
	if len(b.readers) == 0 {
		b.mu.Unlock()
		return nil
	}
	b.items = append(b.items, item{kind: itemValue, value: v})
	b.mu.Unlock()
	b.notifier.SignalAll()
	return nil
}

func (b *SubjectBuffer) Error(err error) error {
	b.mu.Lock()
	if b.erred {
		b.mu.Unlock()
		return ErrWriteAfterError
	}
	if b.complete {
		b.mu.Unlock()
		return ErrWriteAfterComplete
	}
	b.erred = true
	b.items = append(b.items, item{kind: itemError, err: err})
	b.mu.Unlock()
	b.notifier.SignalAll()
	return nil
}

func (b *SubjectBuffer) Complete() error {
	b.mu.Lock()
	if b.erred {
		b.mu.Unlock()
		return nil // complete after error is a no-op
	}
	if b.complete {
		b.mu.Unlock()
		return nil
	}
	b.complete = true
	b.items = append(b.items, item{kind: itemComplete})
	b.mu.Unlock()
	b.notifier.SignalAll()
	return nil
}

func (b *SubjectBuffer) AttachReader() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.readers[id] = b.base + len(b.items)
	return id
}

func (b *SubjectBuffer) DetachReader(id uint64) {
	b.mu.Lock()
	delete(b.readers, id)
	b.mu.Unlock()
	b.prune()
}

func (b *SubjectBuffer) Read(ctx context.Context, id uint64) (Value, bool, error) {
	for {
		b.mu.Lock()
		cursor, ok := b.readers[id]
		if !ok {
			b.mu.Unlock()
			return nil, true, nil
		}
		idx := cursor - b.base
		if idx >= 0 && idx < len(b.items) {
			it := b.items[idx]
			if it.kind == itemValue {
				b.readers[id] = cursor + 1
				b.mu.Unlock()
				b.prune()
				return it.value, false, nil
			}
			b.mu.Unlock()
			if it.kind == itemError {
				return nil, true, it.err
			}
			return nil, true, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-b.notifier.Wait():
		}
	}
}

func (b *SubjectBuffer) Peek(id uint64) (Value, bool, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cursor, ok := b.readers[id]
	if !ok {
		return nil, true, true, nil
	}
	idx := cursor - b.base
	if idx >= 0 && idx < len(b.items) {
		it := b.items[idx]
		switch it.kind {
		case itemValue:
			return it.value, true, false, nil
		case itemError:
			return nil, true, true, it.err
		default:
			return nil, true, true, nil
		}
	}
	return nil, false, b.complete || b.erred, nil
}

func (b *SubjectBuffer) Completed(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cursor, ok := b.readers[id]
	if !ok {
		return true
	}
	idx := cursor - b.base
	if idx >= 0 && idx < len(b.items) {
		return b.items[idx].kind != itemValue
	}
	return b.complete || b.erred
}

// prune drops leading items no active reader still needs, after any read or
// detach, per the spec's reclaim rule.
func (b *SubjectBuffer) prune() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readers) == 0 {
		b.base += len(b.items)
		b.items = nil
		return
	}
	min := -1
	for _, cursor := range b.readers {
		if min == -1 || cursor < min {
			min = cursor
		}
	}
	if min > b.base {
		drop := min - b.base
		if drop > len(b.items) {
			drop = len(b.items)
		}
		b.items = b.items[drop:]
		b.base += drop
	}
}
