package tracer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMapFilterScenario mirrors spec §8's concrete scenario 1: source
// 1,2,3,4,5 through map(x*2) then filter(x>4) delivers 6,8,10 and the
// tracer records 5 emitted, 3 delivered, 2 filtered, 0 dropped.
func TestMapFilterScenario(t *testing.T) {
	tr := New(Options{})

	var delivered, filtered, dropped int
	tr.Subscribe(Handlers{
		OnDelivered: func(ValueTrace) { delivered++ },
		OnFiltered:  func(ValueTrace) { filtered++ },
		OnDropped:   func(ValueTrace) { dropped++ },
	})

	subID := "sub-1"
	for _, x := range []int{1, 2, 3, 4, 5} {
		id := tr.StartTrace("s1", "source", subID, x)
		tr.EnterOperator(id, 0, "map", x)
		doubled := x * 2
		tr.ExitOperator(id, 0, "map", doubled, true, OutcomeTransformed, nil)

		tr.EnterOperator(id, 1, "filter", doubled)
		if doubled > 4 {
			tr.ExitOperator(id, 1, "filter", doubled, true, OutcomeTransformed, nil)
			tr.MarkDelivered(id)
		} else {
			tr.ExitOperator(id, 1, "filter", nil, false, OutcomeFiltered, nil)
		}
	}

	require.Equal(t, 3, delivered)
	require.Equal(t, 2, filtered)
	require.Equal(t, 0, dropped)

	traces := tr.GetAllTraces()
	require.Len(t, traces, 5)
}

func TestTerminalInvariantExactlyOneReasonSet(t *testing.T) {
	tr := New(Options{})
	id := tr.StartTrace("s", "source", "sub", 1)
	tr.EnterOperator(id, 0, "filter", 1)
	tr.ExitOperator(id, 0, "filter", nil, false, OutcomeFiltered, nil)

	traces := tr.GetAllTraces()
	require.Len(t, traces, 1)
	v := traces[0]
	require.Equal(t, "filtered", v.State)
	require.Equal(t, "filtered", v.TerminalReason)
	require.Nil(t, v.DeliveredAt)
}

func TestDeliveryClearsPriorTerminalMarker(t *testing.T) {
	tr := New(Options{})
	id := tr.StartTrace("s", "source", "sub", 1)
	tr.EnterOperator(id, 0, "filter", 1)
	tr.ExitOperator(id, 0, "filter", nil, false, OutcomeFiltered, nil)
	require.Equal(t, "filtered", tr.GetAllTraces()[0].State)

	tr.MarkDelivered(id)
	v := tr.GetAllTraces()[0]
	require.Equal(t, "delivered", v.State)
	require.Empty(t, v.TerminalReason)
	require.NotNil(t, v.DeliveredAt)
}

func TestLateOperationSurfacesDropped(t *testing.T) {
	tr := New(Options{})
	id := tr.StartTrace("s", "source", "sub", 1)

	var dropped int
	tr.Subscribe(Handlers{OnDropped: func(ValueTrace) { dropped++ }})

	tr.CompleteSubscription("sub")
	tr.EnterOperator(id, 0, "map", 1)

	v := tr.GetAllTraces()[0]
	require.Equal(t, "dropped", v.State)
	require.Equal(t, "late", v.TerminalReason)
	require.Equal(t, 1, dropped)
}

func TestErroredOperatorTerminatesAndReportsDropped(t *testing.T) {
	tr := New(Options{})
	id := tr.StartTrace("s", "source", "sub", 1)

	var dropped, errored int
	tr.Subscribe(Handlers{
		OnDropped: func(ValueTrace) { dropped++ },
		OnErrored: func(ValueTrace) { errored++ },
	})

	tr.EnterOperator(id, 0, "map", 1)
	tr.ErrorInOperator(id, 0, "map", errors.New("boom"))

	v := tr.GetAllTraces()[0]
	require.Equal(t, "errored", v.State)
	require.Equal(t, 1, dropped)
	require.Equal(t, 1, errored)
}

func TestCollapseMarksCarrierAndVictims(t *testing.T) {
	tr := New(Options{})
	carrier := tr.StartTrace("s", "source", "sub", []int{1, 2})
	victim := tr.StartTrace("s", "source", "sub", 1)

	tr.EnterOperator(carrier, 0, "bufferUntil", nil)
	tr.ExitOperator(carrier, 0, "bufferUntil", []int{1, 2}, true, OutcomeCollapsed, nil)
	tr.CollapseValue(victim, carrier, 0, "bufferUntil")

	victimView := findTrace(tr, victim)
	require.Equal(t, "collapsed", victimView.State)
	require.Equal(t, carrier, victimView.CollapsedInto.TargetValueID)

	carrierView := findTrace(tr, carrier)
	require.NotEqual(t, "collapsed", carrierView.State) // carrier stays active/transformed, not terminal
}

func TestExpandedChildTrace(t *testing.T) {
	tr := New(Options{})
	base := tr.StartTrace("s", "source", "sub", 1)
	child := tr.CreateExpandedTrace(base, base, 0, "mergeMap", 100)

	v := findTrace(tr, child)
	require.Equal(t, "expanded", v.State)
	require.Equal(t, base, v.ExpandedFrom.BaseValueID)
}

func TestMaxTracesEvictsOldest(t *testing.T) {
	tr := New(Options{MaxTraces: 2})
	a := tr.StartTrace("s", "source", "sub", 1)
	_ = tr.StartTrace("s", "source", "sub", 2)
	_ = tr.StartTrace("s", "source", "sub", 3)

	traces := tr.GetAllTraces()
	require.Len(t, traces, 2)
	for _, v := range traces {
		require.NotEqual(t, a, v.ValueID)
	}
}

func TestLightweightTracerOmitsSteps(t *testing.T) {
	tr := New(Options{Lightweight: true})
	id := tr.StartTrace("s", "source", "sub", 1)
	tr.EnterOperator(id, 0, "map", 1)
	tr.ExitOperator(id, 0, "map", 2, true, OutcomeTransformed, nil)
	tr.MarkDelivered(id)

	v := findTrace(tr, id)
	require.Equal(t, "delivered", v.State)
	require.Empty(t, v.OperatorSteps)
	require.Empty(t, v.OperatorDurations)
}

func TestSnapshotRoundTrips(t *testing.T) {
	tr := New(Options{})
	tr.StartTrace("s", "source", "sub", 1)
	data, err := tr.Snapshot()
	require.NoError(t, err)
	require.Contains(t, string(data), `"state":"emitted"`)
}

func TestGlobalTracerEnableDisable(t *testing.T) {
	require.Nil(t, GetGlobalTracer())
	tr := New(Options{})
	EnableTracing(tr)
	require.Same(t, tr, GetGlobalTracer())
	DisableTracing()
	require.Nil(t, GetGlobalTracer())
}

func findTrace(tr *Tracer, id string) ValueTrace {
	for _, v := range tr.GetAllTraces() {
		if v.ValueID == id {
			return v
		}
	}
	return ValueTrace{}
}
