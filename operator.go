package streamflow

import "context"

// Operator wraps an Iterator transform. Name identifies it in traces,
// errors, and pipe diagnostics — the same role the teacher's task
// identifiers play for correlating a failure back to its origin.
type Operator struct {
	Name  string
	apply func(ctx context.Context, source Iterator, opIndex int) Iterator
}

// CreateOperator builds an Operator from a transform function that receives
// the source iterator and this operator's position in its pipe chain.
// Implementations should call TagOutput when they produce a value, so the
// tracer and withLatestFrom can read {valueId, operatorIndex, operatorName}
// immediately after each Next.
func CreateOperator(name string, fn func(ctx context.Context, source Iterator, opIndex int) Iterator) Operator {
	return Operator{Name: name, apply: fn}
}

// TagOutput records meta for the value an operator-produced iterator just
// returned from Next, onto that iterator's own metaBox.
func TagOutput(box *metaBox, valueID string, opIndex int, opName string, kind Kind, inputIDs ...string) {
	box.setMeta(Meta{ValueID: valueID, OperatorIndex: opIndex, OperatorName: opName, Kind: kind, InputValueIDs: inputIDs})
}
