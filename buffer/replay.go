package buffer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ygrebnov/streamflow/internal/sync2"
	"github.com/ygrebnov/streamflow/metrics"
)

// Unbounded marks a ReplayBuffer with no capacity limit: it never applies
// backpressure and retains its entire write history.
const Unbounded = -1

// ReplayBuffer delivers the last `capacity` values, in order, to any newly
// attached reader. With capacity == 0 it degenerates to Subject semantics
// (no replay); with capacity == Unbounded it never blocks writers and keeps
// the full history.
//
// Backpressure is implemented with golang.org/x/sync/semaphore.Weighted:
// one permit per live (unconsumed-by-someone) slot, acquired before a write
// is accepted and released when the oldest slot's last obligated reader has
// consumed or detached from it.
type ReplayBuffer struct {
	mu               sync.Mutex
	capacity         int
	items            []item
	base             int
	totalWritten     int
	readers          map[uint64]int
	outstanding      map[int]int
	erred            bool
	terminalErr      error
	complete         bool
	sem              *semaphore.Weighted
	notifier         sync2.Notifier
	nextID           uint64
	backpressureWait metrics.Counter
}

// NewReplayBuffer constructs a ReplayBuffer with the given capacity. Use
// Unbounded for an unbounded, never-blocking buffer.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	return NewReplayBufferWithMetrics(capacity, metrics.NoopProvider{})
}

// NewReplayBufferWithMetrics constructs a ReplayBuffer that records its
// write-side backpressure through m: every Write call that finds no free
// slot and has to wait for evictFront to make room increments a
// "replaybuffer_backpressure_wait" counter.
func NewReplayBufferWithMetrics(capacity int, m metrics.Provider) *ReplayBuffer {
	if m == nil {
		m = metrics.NoopProvider{}
	}
	rb := &ReplayBuffer{
		capacity:    capacity,
		readers:     make(map[uint64]int),
		outstanding: make(map[int]int),
		backpressureWait: m.Counter(
			"replaybuffer_backpressure_wait",
			metrics.WithDescription("writes that blocked waiting for a replay slot to free up"),
			metrics.WithUnit("1"),
		),
	}
	if capacity > 0 {
		rb.sem = semaphore.NewWeighted(int64(capacity))
	}
	return rb
}

func (b *ReplayBuffer) Write(ctx context.Context, v Value) error {
	// Make room for this write before acquiring: a slot with zero
	// outstanding readers must be recycled here even if no reader is
	// ever attached, or writes would deadlock against a capacity that
	// nothing will otherwise free.
	b.evictFront()

	if b.sem != nil {
		if !b.sem.TryAcquire(1) {
			b.backpressureWait.Add(1)
			if err := b.sem.Acquire(ctx, 1); err != nil {
				return err
			}
		}
	}

	b.mu.Lock()
	if b.erred {
		b.mu.Unlock()
		if b.sem != nil {
			b.sem.Release(1)
		}
		return ErrWriteAfterError
	}
	if b.complete {
		b.mu.Unlock()
		if b.sem != nil {
			b.sem.Release(1)
		}
		return ErrWriteAfterComplete
	}

	idx := b.base + len(b.items)
	b.items = append(b.items, item{kind: itemValue, value: v})
	b.outstanding[idx] = len(b.readers)
	b.totalWritten++
	b.mu.Unlock()

	b.notifier.SignalAll()
	return nil
}

func (b *ReplayBuffer) Error(err error) error {
	b.mu.Lock()
	if b.erred || b.complete {
		b.mu.Unlock()
		return nil
	}
	b.erred = true
	b.terminalErr = err
	held := int64(len(b.items))
	b.mu.Unlock()
	b.notifier.SignalAll()
	if b.sem != nil && held > 0 {
		// unblock any writer waiting for room; further writes are rejected.
		b.sem.Release(held)
	}
	return nil
}

func (b *ReplayBuffer) Complete() error {
	b.mu.Lock()
	if b.erred || b.complete {
		b.mu.Unlock()
		return nil
	}
	b.complete = true
	held := int64(len(b.items))
	b.mu.Unlock()
	b.notifier.SignalAll()
	if b.sem != nil && held > 0 {
		b.sem.Release(held)
	}
	return nil
}

func (b *ReplayBuffer) AttachReader() uint64 {
	b.mu.Lock()
	id := b.nextID
	b.nextID++

	start := b.base
	switch {
	case b.capacity > 0:
		if lo := b.totalWritten - b.capacity; lo > start {
			start = lo
		}
	case b.capacity == 0:
		start = b.base + len(b.items)
	default: // Unbounded
		start = b.base
	}

	end := b.base + len(b.items)
	for idx := start; idx < end; idx++ {
		b.outstanding[idx]++
	}
	b.readers[id] = start
	b.mu.Unlock()
	return id
}

func (b *ReplayBuffer) DetachReader(id uint64) {
	b.mu.Lock()
	cursor, ok := b.readers[id]
	delete(b.readers, id)
	if ok && b.capacity > 0 {
		end := b.base + len(b.items)
		for idx := cursor; idx < end; idx++ {
			b.outstanding[idx]--
		}
	}
	b.mu.Unlock()
	b.evictFront()
}

func (b *ReplayBuffer) Read(ctx context.Context, id uint64) (Value, bool, error) {
	for {
		b.mu.Lock()
		cursor, ok := b.readers[id]
		if !ok {
			b.mu.Unlock()
			return nil, true, nil
		}
		idx := cursor - b.base
		if idx >= 0 && idx < len(b.items) {
			v := b.items[idx].value
			b.readers[id] = cursor + 1
			b.mu.Unlock()
			b.consume(cursor)
			return v, false, nil
		}
		if b.erred {
			err := b.terminalErr
			b.mu.Unlock()
			return nil, true, err
		}
		if b.complete {
			b.mu.Unlock()
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

func (b *ReplayBuffer) Peek(id uint64) (Value, bool, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cursor, ok := b.readers[id]
	if !ok {
		return nil, true, true, nil
	}
	idx := cursor - b.base
	if idx >= 0 && idx < len(b.items) {
		return b.items[idx].value, true, false, nil
	}
	if b.erred {
		return nil, true, true, b.terminalErr
	}
	return nil, false, b.complete, nil
}

func (b *ReplayBuffer) Completed(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cursor, ok := b.readers[id]
	if !ok {
		return true
	}
	idx := cursor - b.base
	if idx >= 0 && idx < len(b.items) {
		return false
	}
	return b.complete || b.erred
}

// consume marks the slot at absolute index idx as read by one fewer
// obligated reader, then evicts the front of the ring if it has become
// free. Only meaningful for bounded buffers; unbounded buffers never evict.
func (b *ReplayBuffer) consume(idx int) {
	if b.capacity <= 0 {
		return
	}
	b.mu.Lock()
	b.outstanding[idx]--
	b.mu.Unlock()
	b.evictFront()
}

// evictFront drops the oldest live item, releasing one semaphore permit, but
// only once the buffer actually holds capacity items and that oldest slot
// has zero outstanding obligated readers. The capacity guard is what keeps
// the last min(capacity, totalWritten) values retained for replay to a late
// AttachReader regardless of whether any reader exists yet: a slot is never
// recycled merely because its reader count reached zero while the buffer
// still has headroom. Once the buffer is full, eviction proceeds to make
// room for the next write; if the oldest slot still has an obligated reader
// that hasn't advanced past it, eviction (and the write waiting on it) stays
// blocked until that reader catches up — the reader-lag backpressure case.
func (b *ReplayBuffer) evictFront() {
	if b.capacity <= 0 {
		return
	}
	for {
		b.mu.Lock()
		if len(b.items) < b.capacity {
			b.mu.Unlock()
			return
		}
		front := b.base
		if b.outstanding[front] > 0 {
			b.mu.Unlock()
			return
		}
		delete(b.outstanding, front)
		b.items = b.items[1:]
		b.base++
		b.mu.Unlock()
		b.sem.Release(1)
	}
}
