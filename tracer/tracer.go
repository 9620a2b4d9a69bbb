package tracer

import (
	"context"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Handlers is the set of callbacks a Subscribe/ObserveSubscription caller
// may register. Any may be nil. Handlers are invoked synchronously, in
// dispatch order, from whatever goroutine drove the transition — the
// tracer never throws on observation, but a panicking handler is the
// caller's own undefined behaviour, exactly as spec §7 describes for
// subscription observers in general.
type Handlers struct {
	OnUpdate    func(v ValueTrace, lastStep *OperatorStep)
	OnFiltered  func(v ValueTrace)
	OnCollapsed func(v ValueTrace)
	OnDelivered func(v ValueTrace)
	OnDropped   func(v ValueTrace)
	OnErrored   func(v ValueTrace)
}

func (h Handlers) fire(sig emitSignal, v ValueTrace) {
	switch sig {
	case emitFiltered:
		if h.OnFiltered != nil {
			h.OnFiltered(v)
		}
	case emitCollapsed:
		if h.OnCollapsed != nil {
			h.OnCollapsed(v)
		}
	case emitDelivered:
		if h.OnDelivered != nil {
			h.OnDelivered(v)
		}
	case emitDropped:
		if h.OnDropped != nil {
			h.OnDropped(v)
		}
	case emitErrored:
		if h.OnErrored != nil {
			h.OnErrored(v)
		}
	}
}

type observer struct {
	id      uint64
	subOnly string // "" means every subscription
	h       Handlers
}

// Options configures a Tracer at construction.
type Options struct {
	// MaxTraces bounds how many traces are retained; the oldest (by
	// insertion order) is evicted once the bound is exceeded. Zero selects
	// the default bound of 10,000; negative means unbounded.
	MaxTraces int

	// OnTraceUpdate, if set, is invoked after every transition with the
	// updated trace and the step it just opened/closed, if any.
	OnTraceUpdate func(v ValueTrace, lastStep *OperatorStep)

	// DeliverExpandedChildren controls whether a trace created via
	// CreateExpandedTrace may itself be marked delivered. Defaults to
	// true; set false for a policy where only a top-level (non-child)
	// trace may reach the subscriber.
	DeliverExpandedChildren bool

	// Lightweight enables the "terminal tracer variant" spec §4.8
	// describes for low-overhead production use: operator steps are kept
	// internally without their input/output values and are not exported,
	// durations are not recorded, and terminal/delivery semantics are
	// preserved exactly.
	Lightweight bool

	// OTelTracer, if set, opens/closes a span for every operator step —
	// see otel.go. Nil disables span emission entirely (the default; the
	// in-process record never depends on it).
	OTelTracer oteltrace.Tracer
}

// Tracer is the value tracer's state machine: a map of active/terminal
// TraceRecords guarded by one mutex, since the runtime this implements is
// single-threaded-cooperative in spirit even though Go streamflow itself
// runs pipelines across goroutines.
type Tracer struct {
	mu sync.Mutex

	opts Options
	otel oteltrace.Tracer

	records map[string]*record
	evict   *evictList

	completedSubs map[string]bool

	observers []observer
	nextObsID uint64
}

// New constructs a Tracer. A zero-value Options is valid: at most 10,000
// retained traces, eager (non-lightweight) tracing, children deliverable, no
// observability backend.
func New(opts Options) *Tracer {
	if opts.MaxTraces == 0 {
		opts.MaxTraces = 10000
	}
	return &Tracer{
		opts:          opts,
		otel:          opts.OTelTracer,
		records:       make(map[string]*record),
		evict:         newEvictList(opts.MaxTraces),
		completedSubs: make(map[string]bool),
	}
}

// StartTrace opens a new active trace for a value freshly produced by a
// stream, and returns its valueId.
func (t *Tracer) StartTrace(streamID, streamName, subscriptionID string, sourceValue any) string {
	id := newID()
	now := time.Now()
	r := &record{
		valueID:        id,
		streamID:       streamID,
		streamName:     streamName,
		subscriptionID: subscriptionID,
		emittedAt:      now,
		sourceValue:    sourceValue,
		lightweight:    t.opts.Lightweight,
	}

	t.mu.Lock()
	t.insert(r)
	t.mu.Unlock()
	return id
}

// CreateExpandedTrace opens a child trace for the (2nd and later) output
// of a fan-out operator such as mergeMap. parentValueID is the trace being
// expanded from (may be empty if unknown); baseValueID is the outer value
// the expansion is rooted at.
func (t *Tracer) CreateExpandedTrace(parentValueID, baseValueID string, opIndex int, opName string, value any) string {
	id := newID()
	now := time.Now()
	r := &record{
		valueID:       id,
		emittedAt:     now,
		sourceValue:   value,
		parentTraceID: parentValueID,
		expandedFrom:  &ExpandedFrom{OperatorIndex: opIndex, OperatorName: opName, BaseValueID: baseValueID},
		lightweight:   t.opts.Lightweight,
	}

	t.mu.Lock()
	if parent, ok := t.records[parentValueID]; ok {
		r.streamID, r.streamName, r.subscriptionID = parent.streamID, parent.streamName, parent.subscriptionID
	}
	t.insert(r)
	t.mu.Unlock()
	return id
}

// insert must be called with t.mu held.
func (t *Tracer) insert(r *record) {
	t.records[r.valueID] = r
	if evicted, ok := t.evict.push(r.valueID); ok {
		delete(t.records, evicted)
	}
}

// EnterOperator records that valueID's value is entering opIndex:opName.
func (t *Tracer) EnterOperator(valueID string, opIndex int, opName string, input any) {
	t.withRecord(valueID, func(r *record) event {
		return event{kind: eventEnterOp, at: time.Now(), opIndex: opIndex, opName: opName, input: input}
	})
}

// ExitOperator records that valueID's value finished opIndex:opName with
// outcome, optionally carrying output and/or err.
func (t *Tracer) ExitOperator(valueID string, opIndex int, opName string, output any, hasOutput bool, outcome Outcome, err error) {
	t.withRecord(valueID, func(r *record) event {
		return event{
			kind: eventExitOp, at: time.Now(),
			opIndex: opIndex, opName: opName,
			output: output, hasOutput: hasOutput,
			outcome: outcome, err: err,
		}
	})
}

// ErrorInOperator is a convenience for ExitOperator with OutcomeErrored.
func (t *Tracer) ErrorInOperator(valueID string, opIndex int, opName string, err error) {
	t.ExitOperator(valueID, opIndex, opName, nil, false, OutcomeErrored, err)
}

// CollapseValue terminalises victimValueID with terminalReason=collapsed,
// recording which carrier (targetValueID, at opIndex:opName) it was folded
// into. The carrier's own operator step is tagged OutcomeCollapsed via a
// normal ExitOperator call from the calling operator — see spec §9's
// resolution of the collapse-export Open Question.
func (t *Tracer) CollapseValue(victimValueID, targetValueID string, opIndex int, opName string) {
	t.withRecord(victimValueID, func(r *record) event {
		r.collapsedInto = &CollapsedInto{OperatorIndex: opIndex, OperatorName: opName, TargetValueID: targetValueID}
		return event{kind: eventTerminalize, at: time.Now(), reason: ReasonCollapsed}
	})
}

// MarkDelivered records that valueID's value reached a subscriber's Next
// callback. A no-op if Options.DeliverExpandedChildren is false and this
// trace is a fan-out child.
func (t *Tracer) MarkDelivered(valueID string) {
	t.mu.Lock()
	r, ok := t.records[valueID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if !t.opts.DeliverExpandedChildren && r.parentTraceID != "" {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.withRecord(valueID, func(r *record) event {
		return event{kind: eventDeliver, at: time.Now()}
	})
}

// CompleteSubscription marks subscriptionID as finished: any further
// operation against one of its traces is terminalised with reason=late
// instead of applying normally, and surfaced to observers as dropped.
func (t *Tracer) CompleteSubscription(subscriptionID string) {
	t.mu.Lock()
	t.completedSubs[subscriptionID] = true
	t.mu.Unlock()
}

// withRecord looks up valueID, applies the late-subscription override if
// its subscription has already completed, otherwise builds and reduces
// the event mkEvent returns, then fires observers and OnTraceUpdate.
func (t *Tracer) withRecord(valueID string, mkEvent func(r *record) event) {
	t.mu.Lock()
	r, ok := t.records[valueID]
	if !ok {
		t.mu.Unlock()
		return
	}

	late := r.subscriptionID != "" && t.completedSubs[r.subscriptionID] && r.status == statusActive
	var ev event
	if late {
		ev = event{kind: eventTerminalize, at: time.Now(), reason: ReasonLate}
	} else {
		ev = mkEvent(r)
	}

	if ev.kind == eventEnterOp && t.otel != nil {
		t.startOperatorSpan(context.Background(), r, ev.opIndex, ev.opName, valueID)
	}
	emits, lastStep := reduce(r, ev)
	if ev.kind == eventExitOp && t.otel != nil {
		t.endOperatorSpan(r, ev.opIndex, ev.opName, ev.outcome, ev.err)
	}

	view := exportLocked(r)
	obs := append([]observer(nil), t.observers...)
	onUpdate := t.opts.OnTraceUpdate
	t.mu.Unlock()

	if onUpdate != nil {
		onUpdate(view, lastStep)
	}
	for _, o := range obs {
		if o.subOnly != "" && o.subOnly != r.subscriptionID {
			continue
		}
		if o.h.OnUpdate != nil {
			o.h.OnUpdate(view, lastStep)
		}
		for _, sig := range emits {
			o.h.fire(sig, view)
		}
	}
}

// Subscribe registers h for every trace transition across every
// subscription. The returned func unregisters h; calling it more than
// once is a no-op.
func (t *Tracer) Subscribe(h Handlers) func() {
	return t.subscribe("", h)
}

// ObserveSubscription registers h for transitions belonging only to
// subID.
func (t *Tracer) ObserveSubscription(subID string, h Handlers) func() {
	return t.subscribe(subID, h)
}

func (t *Tracer) subscribe(subOnly string, h Handlers) func() {
	t.mu.Lock()
	id := t.nextObsID
	t.nextObsID++
	t.observers = append(t.observers, observer{id: id, subOnly: subOnly, h: h})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			for i, o := range t.observers {
				if o.id == id {
					t.observers = append(t.observers[:i], t.observers[i+1:]...)
					break
				}
			}
			t.mu.Unlock()
		})
	}
}

// GetAllTraces returns an immutable snapshot of every retained trace, in
// insertion order.
func (t *Tracer) GetAllTraces() []ValueTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ValueTrace, 0, len(t.records))
	for n := t.evict.head; n != nil; n = n.next {
		if r, ok := t.records[n.valueID]; ok {
			out = append(out, exportLocked(r))
		}
	}
	return out
}

// Clear discards every retained trace and completed-subscription marker.
func (t *Tracer) Clear() {
	t.mu.Lock()
	t.records = make(map[string]*record)
	t.evict.clear()
	t.completedSubs = make(map[string]bool)
	t.mu.Unlock()
}
