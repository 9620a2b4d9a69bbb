package streamflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ygrebnov/streamflow/tracer"
)

func TestGlobalTracerObservesMapFilterPipeline(t *testing.T) {
	tr := tracer.New(tracer.Options{})
	tracer.EnableTracing(tr)
	defer tracer.DisableTracing()

	s := FromSlice("src", []int{1, 2, 3, 4, 5}).
		Pipe(Map(func(x int) int { return x * 2 }), Filter(func(x int) bool { return x > 4 }))

	got, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []Value{6, 8, 10}, got)

	traces := tr.GetAllTraces()
	require.Len(t, traces, 5)

	var delivered, filtered int
	for _, v := range traces {
		switch v.State {
		case "delivered":
			delivered++
		case "filtered":
			filtered++
		}
	}
	require.Equal(t, 3, delivered)
	require.Equal(t, 2, filtered)
}

func TestNoGlobalTracerIsZeroCost(t *testing.T) {
	require.Nil(t, tracer.GetGlobalTracer())

	s := FromSlice("src", []int{1, 2, 3}).Pipe(Map(func(x int) int { return x + 1 }))
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []Value{2, 3, 4}, got)
}
