package tracer

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is configured to match encoding/json's field-name behaviour; see
// the retrieved pack's cmn/cos usage of jsoniter for the same
// compatibility posture.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StepView is the exported, read-only shape of OperatorStep.
type StepView struct {
	OperatorIndex int        `json:"operatorIndex"`
	OperatorName  string     `json:"operatorName"`
	EnteredAt     time.Time  `json:"enteredAt"`
	ExitedAt      *time.Time `json:"exitedAt,omitempty"`
	InputValue    any        `json:"inputValue,omitempty"`
	OutputValue   any        `json:"outputValue,omitempty"`
	Outcome       string     `json:"outcome,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// ValueTrace is the exported, immutable view of one trace, per spec §3.3
// and §4.8's export table.
type ValueTrace struct {
	ValueID        string `json:"valueId"`
	StreamID       string `json:"streamId,omitempty"`
	StreamName     string `json:"streamName,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`

	EmittedAt   time.Time  `json:"emittedAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	// State is one of: emitted, transformed, filtered, collapsed,
	// expanded, errored, delivered, dropped — derived per the table in
	// spec §4.8, never stored directly.
	State          string `json:"state"`
	TerminalReason string `json:"terminalReason,omitempty"`
	DroppedReason  string `json:"droppedReason,omitempty"`

	SourceValue any `json:"sourceValue,omitempty"`
	FinalValue  any `json:"finalValue,omitempty"`

	ParentTraceID string         `json:"parentTraceId,omitempty"`
	ExpandedFrom  *ExpandedFrom  `json:"expandedFrom,omitempty"`
	CollapsedInto *CollapsedInto `json:"collapsedInto,omitempty"`

	OperatorSteps     []StepView       `json:"operatorSteps,omitempty"`
	OperatorDurations map[string]int64 `json:"operatorDurations,omitempty"` // nanoseconds
	TotalDuration     int64            `json:"totalDuration,omitempty"`     // nanoseconds
}

// deriveState implements spec §4.8's export-state table.
func deriveState(r *record) string {
	switch {
	case r.status == statusDelivered:
		return "delivered"
	case r.status == statusTerminal && r.terminalReason == ReasonFiltered:
		return "filtered"
	case r.status == statusTerminal && r.terminalReason == ReasonCollapsed:
		return "collapsed"
	case r.status == statusTerminal && r.terminalReason == ReasonErrored:
		return "errored"
	case r.status == statusTerminal && r.terminalReason == ReasonLate:
		return "dropped"
	case r.parentTraceID != "" && r.status == statusActive:
		return "expanded"
	case len(r.operatorSteps) > 0 && r.status == statusActive:
		return "transformed"
	default:
		return "emitted"
	}
}

// exportLocked builds a ValueTrace from r. Callers must hold the owning
// Tracer's mutex.
func exportLocked(r *record) ValueTrace {
	v := ValueTrace{
		ValueID:        r.valueID,
		StreamID:       r.streamID,
		StreamName:     r.streamName,
		SubscriptionID: r.subscriptionID,
		EmittedAt:      r.emittedAt,
		State:          deriveState(r),
		TerminalReason: r.terminalReason.String(),
		DroppedReason:  r.droppedReason,
		SourceValue:    r.sourceValue,
		ParentTraceID:  r.parentTraceID,
		ExpandedFrom:   r.expandedFrom,
		CollapsedInto:  r.collapsedInto,
	}
	if r.hasDelivered {
		d := r.deliveredAt
		v.DeliveredAt = &d
	}
	if r.hasFinal {
		v.FinalValue = r.finalValue
	}
	if !r.lightweight {
		if len(r.operatorSteps) > 0 {
			v.OperatorSteps = make([]StepView, len(r.operatorSteps))
			for i, s := range r.operatorSteps {
				sv := StepView{
					OperatorIndex: s.OperatorIndex,
					OperatorName:  s.OperatorName,
					EnteredAt:     s.EnteredAt,
					InputValue:    s.InputValue,
				}
				if s.Exited {
					exited := s.ExitedAt
					sv.ExitedAt = &exited
					sv.Outcome = s.Outcome.String()
				}
				if s.HasOutput {
					sv.OutputValue = s.OutputValue
				}
				if s.Error != nil {
					sv.Error = s.Error.Error()
				}
				v.OperatorSteps[i] = sv
			}
		}
		if len(r.operatorDurations) > 0 {
			v.OperatorDurations = make(map[string]int64, len(r.operatorDurations))
			for k, d := range r.operatorDurations {
				v.OperatorDurations[k] = d.Nanoseconds()
			}
		}
	}
	if r.hasTotalDuration {
		v.TotalDuration = r.totalDuration.Nanoseconds()
	}
	return v
}

// Snapshot returns a point-in-time JSON-serialisable dump of
// GetAllTraces, for an out-of-process visualiser that only has pull-based
// access (e.g. cmd/tracedump, or an HTTP handler polling it).
func (t *Tracer) Snapshot() ([]byte, error) {
	return json.Marshal(t.GetAllTraces())
}
