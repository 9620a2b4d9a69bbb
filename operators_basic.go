package streamflow

import (
	"context"

	"github.com/ygrebnov/streamflow/tracer"
)

// Map builds an operator transforming each value of type T into type R.
func Map[T, R any](f func(T) R) Operator {
	return CreateOperator("map", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		return &transformIterator{
			source: source, opIndex: opIndex, name: "map",
			transform: func(v Value) (Value, bool, error) { return f(v.(T)), true, nil },
		}
	})
}

// Filter builds an operator that passes through only values for which pred
// returns true; all others are silently dropped (the spec's `filtered`
// outcome).
func Filter[T any](pred func(T) bool) Operator {
	return CreateOperator("filter", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		return &transformIterator{
			source: source, opIndex: opIndex, name: "filter",
			transform: func(v Value) (Value, bool, error) {
				if pred(v.(T)) {
					return v, true, nil
				}
				return nil, false, nil
			},
		}
	})
}

// Scan builds an operator emitting a running accumulation: each output is
// acc(prev, current), seeded with seed.
func Scan[T, R any](seed R, acc func(R, T) R) Operator {
	return CreateOperator("scan", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		state := seed
		return &transformIterator{
			source: source, opIndex: opIndex, name: "scan",
			transform: func(v Value) (Value, bool, error) {
				state = acc(state, v.(T))
				return state, true, nil
			},
		}
	})
}

// Reduce builds an operator that emits exactly one value — the fully
// reduced accumulation — when source completes, then completes itself.
// Source values themselves are collapsed (never individually delivered).
func Reduce[T, R any](seed R, acc func(R, T) R) Operator {
	return CreateOperator("reduce", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		state := seed
		done := false
		emitted := false
		return newFuncIterator(func(ctx context.Context) (Value, bool, error) {
			if emitted {
				return nil, true, nil
			}
			for !done {
				v, d, err := source.Next(ctx)
				if err != nil {
					return nil, false, err
				}
				if d {
					done = true
					break
				}
				state = acc(state, v.(T))
			}
			emitted = true
			return state, false, nil
		})
	})
}

// transformIterator is the shared shape of single-input, single-output
// (or single-input, filtered) operators: map, filter, scan.
type transformIterator struct {
	source    Iterator
	opIndex   int
	name      string
	transform func(Value) (Value, bool, error)
	metaBox
}

func (t *transformIterator) Next(ctx context.Context) (Value, bool, error) {
	for {
		v, done, err := t.source.Next(ctx)
		if err != nil {
			return nil, false, WrapOperatorError(err, t.opIndex, t.name, "", false)
		}
		if done {
			return nil, true, nil
		}

		var traceID string
		if meta, ok := GetMeta(t.source); ok {
			traceID = meta.TraceID
		}
		traceEnter(traceID, t.opIndex, t.name, v)

		out, keep, err := t.transform(v)
		if err != nil {
			inID, _ := t.inputID(v)
			traceExit(traceID, t.opIndex, t.name, nil, false, tracer.OutcomeErrored, err)
			return nil, false, WrapOperatorError(err, t.opIndex, t.name, inID, inID != "")
		}
		if !keep {
			traceExit(traceID, t.opIndex, t.name, nil, false, tracer.OutcomeFiltered, nil)
			continue
		}
		traceExit(traceID, t.opIndex, t.name, out, true, tracer.OutcomeTransformed, nil)

		id := nextValueID()
		t.setMeta(Meta{ValueID: id, OperatorIndex: t.opIndex, OperatorName: t.name, Kind: KindTransform, TraceID: traceID})
		if stamp, ok := GetStamp(t.source); ok {
			t.setStamp(stamp)
		}
		return out, false, nil
	}
}

func (t *transformIterator) inputID(v Value) (string, bool) {
	if meta, ok := GetMeta(t.source); ok {
		return meta.ValueID, true
	}
	_ = v
	return "", false
}

func (t *transformIterator) Return() error { return CloseIterator(t.source) }
