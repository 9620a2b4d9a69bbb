package tracer

import "time"

// eventKind is one of the four transitions spec §4.8 defines a reducer
// over: ENTER_OP | EXIT_OP | TERMINALIZE | DELIVER.
type eventKind int

const (
	eventEnterOp eventKind = iota
	eventExitOp
	eventTerminalize
	eventDeliver
)

type event struct {
	kind eventKind
	at   time.Time

	opIndex int
	opName  string

	input     any
	output    any
	hasOutput bool
	outcome   Outcome
	err       error

	reason        TerminalReason
	droppedReason string
}

// emitSignal names the observer notification a transition produces, per
// spec §4.8's emit[] list (filtered, collapsed, dropped, delivered).
type emitSignal string

const (
	emitFiltered  emitSignal = "filtered"
	emitCollapsed emitSignal = "collapsed"
	emitDropped   emitSignal = "dropped"
	emitDelivered emitSignal = "delivered"
	emitErrored   emitSignal = "errored"
)

// reduce applies ev to r in place and reports which observer signals the
// transition produced and, for ENTER_OP, the step that was opened. This is
// the one place implementing the state machine spec §4.8 describes as a
// pure reducer(trace, event) → {trace', emit[], lastStep?}; here it is
// expressed as an in-place mutation of the tracer's owned record rather
// than a copy-on-write, since traces are never shared outside the tracer's
// own lock.
func reduce(r *record, ev event) (emits []emitSignal, lastStep *OperatorStep) {
	switch ev.kind {
	case eventEnterOp:
		return reduceEnterOp(r, ev)
	case eventExitOp:
		return reduceExitOp(r, ev)
	case eventTerminalize:
		return reduceTerminalize(r, ev)
	case eventDeliver:
		return reduceDeliver(r, ev)
	default:
		return nil, nil
	}
}

func reduceEnterOp(r *record, ev event) ([]emitSignal, *OperatorStep) {
	if r.status != statusActive {
		return nil, nil
	}
	step := OperatorStep{
		OperatorIndex: ev.opIndex,
		OperatorName:  ev.opName,
		EnteredAt:     ev.at,
		InputValue:    ev.input,
	}
	if r.lightweight {
		step.InputValue = nil
	}
	r.operatorSteps = append(r.operatorSteps, step)
	return nil, &r.operatorSteps[len(r.operatorSteps)-1]
}

func reduceExitOp(r *record, ev event) ([]emitSignal, *OperatorStep) {
	if r.status != statusActive {
		return nil, nil
	}
	idx := findOpenStep(r, ev.opIndex, ev.opName)
	if idx < 0 {
		return nil, nil
	}
	step := &r.operatorSteps[idx]
	step.ExitedAt = ev.at
	step.Exited = true
	step.Outcome = ev.outcome
	step.HasOutcome = true
	step.Error = ev.err
	if !r.lightweight {
		step.OutputValue = ev.output
		step.HasOutput = ev.hasOutput
	}
	r.recordDuration(ev.opIndex, ev.opName, step.ExitedAt.Sub(step.EnteredAt))

	switch ev.outcome {
	case OutcomeFiltered:
		r.closeOpenSteps(ev.at)
		r.status = statusTerminal
		r.terminalReason = ReasonFiltered
		return []emitSignal{emitFiltered}, step
	case OutcomeErrored:
		r.closeOpenSteps(ev.at)
		r.status = statusTerminal
		r.terminalReason = ReasonErrored
		r.droppedReason = "errored"
		if ev.err != nil {
			r.droppedReason = "errored: " + ev.err.Error()
		}
		return []emitSignal{emitDropped, emitErrored}, step
	case OutcomeExpanded:
		// The trace stays active; children are created separately via
		// CreateExpandedTrace and own their own lifecycle.
		if !r.lightweight {
			r.finalValue, r.hasFinal = ev.output, ev.hasOutput
		}
		return nil, step
	default: // transformed, collapsed (on the carrier)
		if !r.lightweight {
			r.finalValue, r.hasFinal = ev.output, ev.hasOutput
		}
		return nil, step
	}
}

func reduceTerminalize(r *record, ev event) ([]emitSignal, *OperatorStep) {
	if r.status == statusDelivered {
		return nil, nil
	}
	r.closeOpenSteps(ev.at)
	r.status = statusTerminal
	r.terminalReason = ev.reason
	r.droppedReason = ev.droppedReason

	switch ev.reason {
	case ReasonFiltered:
		return []emitSignal{emitFiltered}, nil
	case ReasonCollapsed:
		return []emitSignal{emitCollapsed}, nil
	case ReasonErrored:
		return []emitSignal{emitDropped, emitErrored}, nil
	case ReasonLate:
		return []emitSignal{emitDropped}, nil
	default:
		return nil, nil
	}
}

func reduceDeliver(r *record, ev event) ([]emitSignal, *OperatorStep) {
	if r.status == statusDelivered {
		return nil, nil
	}
	r.closeOpenSteps(ev.at)
	r.status = statusDelivered
	r.deliveredAt = ev.at
	r.hasDelivered = true
	r.totalDuration = ev.at.Sub(r.emittedAt)
	r.hasTotalDuration = true
	// A delivery beats a filtered marker: the value did reach the
	// subscriber, so any terminal marker recorded earlier no longer holds.
	r.terminalReason = ReasonNone
	r.droppedReason = ""
	return []emitSignal{emitDelivered}, nil
}

// findOpenStep returns the index of the most recently opened, not-yet-
// exited step matching (opIndex, opName), or -1.
func findOpenStep(r *record, opIndex int, opName string) int {
	for i := len(r.operatorSteps) - 1; i >= 0; i-- {
		s := &r.operatorSteps[i]
		if s.Exited {
			continue
		}
		if s.OperatorIndex == opIndex && s.OperatorName == opName {
			return i
		}
	}
	return -1
}
