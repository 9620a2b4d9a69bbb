package streamflow

import (
	"github.com/ygrebnov/streamflow/tracer"
)

// Tracing wiring.
//
// The core pipeline is traceable but never pays for tracing when no
// global tracer is installed: every call below starts with a
// tracer.GetGlobalTracer() check and returns immediately on nil. This
// file wires the two boundaries that can name a persistent trace id
// across multiple operator stages without restructuring every operator's
// internals: source emission (traceSource, called by sliceIterator) and
// the shared transformIterator single-input/single-output shape (map,
// filter, scan, distinctUntilChanged, distinctUntilKeyChanged all route
// through it). Combinators that fan values through channels internally
// (switchMap, mergeMap, bufferUntil, withLatestFrom, the temporal
// operators) do not forward a TraceID; bufferUntil and mergeMap tag their
// output via SetValueMeta only. A value passing through one of them is
// traced up to that combinator; its later stages and its delivery are not
// recorded.
// A caller who needs full coverage there can call the tracer's
// EnterOperator/ExitOperator directly from a custom operator, exactly as
// this file does, without exposing a traceID concept at Stream's surface.

// traceSource starts a new trace for a value a source just produced, when
// a global tracer is installed, and returns the trace id to thread
// through that value's meta chain (or "" if tracing is off).
func traceSource(streamName string, v Value) string {
	tr := tracer.GetGlobalTracer()
	if tr == nil {
		return ""
	}
	return tr.StartTrace(streamName, streamName, "", v)
}

// traceEnter records entry into opIndex:opName for traceID, a no-op if
// traceID is empty (tracing off, or this value's source wasn't traceable).
func traceEnter(traceID string, opIndex int, opName string, input Value) {
	if traceID == "" {
		return
	}
	if tr := tracer.GetGlobalTracer(); tr != nil {
		tr.EnterOperator(traceID, opIndex, opName, input)
	}
}

// traceExit records exit from opIndex:opName for traceID with outcome.
func traceExit(traceID string, opIndex int, opName string, output Value, hasOutput bool, outcome tracer.Outcome, err error) {
	if traceID == "" {
		return
	}
	if tr := tracer.GetGlobalTracer(); tr != nil {
		tr.ExitOperator(traceID, opIndex, opName, output, hasOutput, outcome, err)
	}
}

// traceDelivered marks traceID as having reached a subscriber's Next.
func traceDelivered(traceID string) {
	if traceID == "" {
		return
	}
	if tr := tracer.GetGlobalTracer(); tr != nil {
		tr.MarkDelivered(traceID)
	}
}
