package streamflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Stream) ([]Value, error) {
	t.Helper()
	var got []Value
	errCh := make(chan error, 1)
	doneCh := make(chan struct{})
	s.Subscribe(Observer{
		Next: func(v Value) { got = append(got, v) },
		Error: func(err error) {
			errCh <- err
			close(doneCh)
		},
		Complete: func() {
			errCh <- nil
			close(doneCh)
		},
	})
	select {
	case err := <-errCh:
		return got, err
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not terminate")
		return nil, nil
	}
}

func TestMapFilterScenario(t *testing.T) {
	s := FromSlice("src", []int{1, 2, 3, 4, 5}).
		Pipe(Map(func(x int) int { return x * 2 }), Filter(func(x int) bool { return x > 4 }))

	got, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []Value{6, 8, 10}, got)
}

func TestPipeIdentity(t *testing.T) {
	s := Of(1, 2, 3)
	got, err := collect(t, s.Pipe())
	require.NoError(t, err)
	require.Equal(t, []Value{1, 2, 3}, got)
}

func TestMapFusionLaw(t *testing.T) {
	f := func(x int) int { return x + 1 }
	g := func(x int) int { return x * 2 }

	fused := Of(1, 2, 3).Pipe(Map(func(x int) int { return g(f(x)) }))
	chained := Of(1, 2, 3).Pipe(Map(f), Map(g))

	gotFused, err := collect(t, fused)
	require.NoError(t, err)
	gotChained, err := collect(t, chained)
	require.NoError(t, err)
	require.Equal(t, gotFused, gotChained)
}

func TestFirstNoMatchErrors(t *testing.T) {
	s := Of(1, 3, 5).Pipe(First(func(x int) bool { return x%2 == 0 }))
	_, err := collect(t, s)
	require.Error(t, err)
	oe, ok := AsOperatorError(err)
	require.True(t, ok)
	require.ErrorIs(t, oe, ErrNoElements)
}

func TestFirstMatch(t *testing.T) {
	s := Of(1, 3, 4, 5).Pipe(First(func(x int) bool { return x%2 == 0 }))
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []Value{4}, got)
}

func TestSubjectRoundTrip(t *testing.T) {
	subj := NewSubject()
	sub := subj.Subscribe(Observer{})
	_ = sub

	var got []Value
	done := make(chan struct{})
	subj.Subscribe(Observer{
		Next:     func(v Value) { got = append(got, v) },
		Complete: func() { close(done) },
	})

	ctx := context.Background()
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, subj.Next(ctx, v))
	}
	require.NoError(t, subj.Complete())
	<-done
	require.Equal(t, []Value{1, 2, 3}, got)
}

func TestDistinctUntilChangedIdempotent(t *testing.T) {
	once := Of(1, 1, 2, 2, 2, 3).Pipe(DistinctUntilChanged[int](nil))
	twice := Of(1, 1, 2, 2, 2, 3).Pipe(DistinctUntilChanged[int](nil), DistinctUntilChanged[int](nil))

	a, err := collect(t, once)
	require.NoError(t, err)
	b, err := collect(t, twice)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, []Value{1, 2, 3}, a)
}

func TestSwitchMapRapidOuterKeepsLastOnly(t *testing.T) {
	s := Of(1, 2, 3).Pipe(SwitchMap(func(v Value) Value {
		x := v.(int)
		return []Value{x * 10, x * 100}
	}))
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []Value{30, 300}, got)
}

func TestBufferUntilFlushesOnNotifier(t *testing.T) {
	source := NewSubject()
	notifier := NewSubject()
	s := source.Pipe(BufferUntil(notifier.Stream))

	var got [][]Value
	done := make(chan struct{})
	errCh := make(chan error, 1)
	s.Subscribe(Observer{
		Next: func(v Value) {
			wrapped, _, ok := UnwrapPrimitive(v)
			if ok {
				got = append(got, wrapped.([]Value))
			} else {
				got = append(got, v.([]Value))
			}
		},
		Error:    func(err error) { errCh <- err; close(done) },
		Complete: func() { errCh <- nil; close(done) },
	})

	ctx := context.Background()
	require.NoError(t, source.Next(ctx, 1))
	require.NoError(t, source.Next(ctx, 2))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, notifier.Next(ctx, struct{}{}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, notifier.Complete())
	for _, v := range []int{3, 4, 5} {
		require.NoError(t, source.Next(ctx, v))
	}
	require.NoError(t, source.Complete())

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("did not complete")
	}
	require.Len(t, got, 2)
}

func TestWithLatestFromWaitsForAuxiliary(t *testing.T) {
	aux := NewBehaviorSubject(100)
	s := Of(1, 2, 3).Pipe(WithLatestFrom(aux.Stream))
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []Value{1, 100}, got[0])
}

func TestEmptySourceThroughMapIsEmpty(t *testing.T) {
	s := Empty().Pipe(Map(func(x int) int { return x }))
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Empty(t, got)
}
