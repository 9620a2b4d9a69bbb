package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubjectBuffer_NoReadersWriteIsNoop(t *testing.T) {
	b := NewSubjectBuffer()
	require.NoError(t, b.Write(context.Background(), 1))
	require.Empty(t, b.items)
}

func TestSubjectBuffer_RoundTrip(t *testing.T) {
	b := NewSubjectBuffer()
	id := b.AttachReader()

	ctx := context.Background()
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, b.Write(ctx, v))
	}
	require.NoError(t, b.Complete())

	var got []int
	for {
		v, done, err := b.Read(ctx, id)
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, v.(int))
	}
	require.Equal(t, []int{1, 2, 3}, got)
	require.True(t, b.Completed(id))
}

func TestSubjectBuffer_LateAttachMissesPriorValues(t *testing.T) {
	b := NewSubjectBuffer()
	ctx := context.Background()
	a := b.AttachReader()
	require.NoError(t, b.Write(ctx, "x"))

	lateReader := b.AttachReader()
	require.NoError(t, b.Write(ctx, "y"))
	require.NoError(t, b.Complete())

	v, done, err := b.Read(ctx, a)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, "x", v)

	v, done, err = b.Read(ctx, lateReader)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, "y", v)
}

func TestSubjectBuffer_ErrorThrowsOnceReached(t *testing.T) {
	b := NewSubjectBuffer()
	ctx := context.Background()
	id := b.AttachReader()
	boom := errDummy("boom")
	require.NoError(t, b.Write(ctx, 1))
	require.NoError(t, b.Error(boom))
	require.ErrorIs(t, b.Write(ctx, 2), ErrWriteAfterError)
	require.NoError(t, b.Complete()) // no-op after error

	v, done, err := b.Read(ctx, id)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 1, v)

	_, done, err = b.Read(ctx, id)
	require.True(t, done)
	require.ErrorIs(t, err, boom)

	// reading again after the error marker still throws.
	_, done, err = b.Read(ctx, id)
	require.True(t, done)
	require.ErrorIs(t, err, boom)
}

type errDummy string

func (e errDummy) Error() string { return string(e) }

func TestBehaviorSubjectBuffer_ScenarioFromSpec(t *testing.T) {
	// init 0, subscribe A, write 1, subscribe B, write 2, complete.
	// A sees 0,1,2. B sees 1,2.
	b := NewBehaviorSubjectBuffer(0, true)
	ctx := context.Background()

	a := b.AttachReader()
	require.NoError(t, b.Write(ctx, 1))
	bid := b.AttachReader()
	require.NoError(t, b.Write(ctx, 2))
	require.NoError(t, b.Complete())

	var gotA []int
	for {
		v, done, err := b.Read(ctx, a)
		require.NoError(t, err)
		if done {
			break
		}
		gotA = append(gotA, v.(int))
	}
	require.Equal(t, []int{0, 1, 2}, gotA)

	var gotB []int
	for {
		v, done, err := b.Read(ctx, bid)
		require.NoError(t, err)
		if done {
			break
		}
		gotB = append(gotB, v.(int))
	}
	require.Equal(t, []int{1, 2}, gotB)
}

func TestBehaviorSubjectBuffer_NoInitialWaitsForFirstWrite(t *testing.T) {
	b := NewBehaviorSubjectBuffer(nil, false)
	id := b.AttachReader()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var got any
	go func() {
		v, _, err := b.Read(ctx, id)
		require.NoError(t, err)
		got = v
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Read returned before any write")
	default:
	}

	require.NoError(t, b.Write(context.Background(), 42))
	<-done
	require.Equal(t, 42, got)
	cancel()
}

func TestReplayBuffer_NewReaderGetsLastCap(t *testing.T) {
	b := NewReplayBuffer(2)
	ctx := context.Background()
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, b.Write(ctx, v))
	}
	id := b.AttachReader()
	require.NoError(t, b.Complete())

	var got []int
	for {
		v, done, err := b.Read(ctx, id)
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, v.(int))
	}
	require.Equal(t, []int{2, 3}, got)
}

func TestReplayBuffer_BackpressureBlocksUntilReaderAdvances(t *testing.T) {
	b := NewReplayBuffer(2)
	ctx := context.Background()
	reader := b.AttachReader()

	require.NoError(t, b.Write(ctx, "a"))
	require.NoError(t, b.Write(ctx, "b"))

	blocked := make(chan error, 1)
	go func() { blocked <- b.Write(ctx, "c") }()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-blocked:
		t.Fatal("write should have blocked: reader has not consumed any slot")
	default:
	}

	v, _, err := b.Read(ctx, reader)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after reader advanced")
	}

	var got []string
	var mu sync.Mutex
	_ = mu
	for {
		v, done, err := b.Read(ctx, reader)
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, v.(string))
		if len(got) == 2 {
			require.NoError(t, b.Complete())
		}
	}
	require.Equal(t, []string{"b", "c"}, got)
}

func TestReplayBuffer_UnboundedNeverBlocks(t *testing.T) {
	b := NewReplayBuffer(Unbounded)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, b.Write(ctx, i))
	}
	id := b.AttachReader()
	v, _, err := b.Read(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestReplayBuffer_ZeroCapActsLikeSubject(t *testing.T) {
	b := NewReplayBuffer(0)
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "missed"))
	id := b.AttachReader()
	require.NoError(t, b.Write(ctx, "seen"))
	require.NoError(t, b.Complete())

	v, done, err := b.Read(ctx, id)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, "seen", v)
}
