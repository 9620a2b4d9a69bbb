package streamflow

import (
	"context"

	"github.com/ygrebnov/streamflow/buffer"
	"github.com/ygrebnov/streamflow/metrics"
)

// newSubjectStream adapts a buffer.Buffer into a Stream: each subscription
// attaches a fresh reader and detaches it on Return, exactly the fan-out
// shape every subject variant shares.
func newSubjectStream(name string, buf buffer.Buffer) *Stream {
	return New(name, func(context.Context) Iterator {
		id := buf.AttachReader()
		detached := false
		it := newFuncIterator(func(ctx context.Context) (Value, bool, error) {
			return buf.Read(ctx, id)
		})
		it.ret = func() error {
			if detached {
				return nil
			}
			detached = true
			buf.DetachReader(id)
			return nil
		}
		return it
	})
}

// Subject is a multicast source with no replay: a reader attached at time t
// sees only values written at t' >= t.
type Subject struct {
	*Stream
	buf buffer.Buffer
}

// NewSubject constructs an empty Subject.
func NewSubject() *Subject {
	buf := buffer.NewSubjectBuffer()
	return &Subject{Stream: newSubjectStream("subject", buf), buf: buf}
}

// Next pushes v to every currently attached reader.
func (s *Subject) Next(ctx context.Context, v Value) error { return s.buf.Write(ctx, v) }

// Error pushes a terminal error marker.
func (s *Subject) Error(err error) error { return s.buf.Error(err) }

// Complete pushes a terminal completion marker.
func (s *Subject) Complete() error { return s.buf.Complete() }

// BehaviorSubject is a Subject that additionally replays its current value
// (initial, or last written) to each newly attached reader.
type BehaviorSubject struct {
	*Stream
	buf *buffer.BehaviorSubjectBuffer
}

// NewBehaviorSubject constructs a BehaviorSubject seeded with initial.
func NewBehaviorSubject(initial Value) *BehaviorSubject {
	buf := buffer.NewBehaviorSubjectBuffer(initial, true)
	return &BehaviorSubject{Stream: newSubjectStream("behaviorSubject", buf), buf: buf}
}

// NewBehaviorSubjectEmpty constructs a BehaviorSubject with no initial
// value: the first reader's first read blocks until the first Next.
func NewBehaviorSubjectEmpty() *BehaviorSubject {
	buf := buffer.NewBehaviorSubjectBuffer(nil, false)
	return &BehaviorSubject{Stream: newSubjectStream("behaviorSubject", buf), buf: buf}
}

func (s *BehaviorSubject) Next(ctx context.Context, v Value) error { return s.buf.Write(ctx, v) }
func (s *BehaviorSubject) Error(err error) error                   { return s.buf.Error(err) }
func (s *BehaviorSubject) Complete() error                         { return s.buf.Complete() }

// Value returns the current latest value and whether one has been set yet.
func (s *BehaviorSubject) Value() (Value, bool) { return s.buf.Value() }

// ReplaySubject is a Subject that replays up to capacity prior values to
// each newly attached reader. Use buffer.Unbounded for no capacity limit.
type ReplaySubject struct {
	*Stream
	buf *buffer.ReplayBuffer
}

// NewReplaySubject constructs a ReplaySubject with the given capacity.
func NewReplaySubject(capacity int) *ReplaySubject {
	buf := buffer.NewReplayBuffer(capacity)
	return &ReplaySubject{Stream: newSubjectStream("replaySubject", buf), buf: buf}
}

// NewReplaySubjectWithMetrics constructs a ReplaySubject whose underlying
// buffer.ReplayBuffer records backpressure-wait through m.
func NewReplaySubjectWithMetrics(capacity int, m metrics.Provider) *ReplaySubject {
	buf := buffer.NewReplayBufferWithMetrics(capacity, m)
	return &ReplaySubject{Stream: newSubjectStream("replaySubject", buf), buf: buf}
}

func (s *ReplaySubject) Next(ctx context.Context, v Value) error { return s.buf.Write(ctx, v) }
func (s *ReplaySubject) Error(err error) error                   { return s.buf.Error(err) }
func (s *ReplaySubject) Complete() error                         { return s.buf.Complete() }
