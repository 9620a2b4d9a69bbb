package streamflow

import "sync"

// Kind classifies how an operator step relates its output to its input(s),
// per the spec's value metadata channel.
type Kind int

const (
	// KindTransform is the default: one input value produced this output.
	KindTransform Kind = iota
	// KindCollapse marks a fan-in output (e.g. bufferUntil): the output
	// carries InputValueIDs naming every contributing input.
	KindCollapse
	// KindExpand marks a fan-out output (e.g. mergeMap): the output is a
	// child of a single base value.
	KindExpand
)

func (k Kind) String() string {
	switch k {
	case KindCollapse:
		return "collapse"
	case KindExpand:
		return "expand"
	default:
		return "transform"
	}
}

// Meta is the sideband tag describing a value's lineage as it crosses an
// operator boundary: which operator produced it, under what value id, and
// (for collapse/expand outputs) which inputs contributed.
type Meta struct {
	ValueID       string
	OperatorIndex int
	OperatorName  string
	Kind          Kind
	InputValueIDs []string

	// TraceID, when non-empty, names the tracer.Tracer trace this value's
	// lineage belongs to. Set at the source when a global tracer is
	// enabled (see traceSource in tracing.go) and forwarded unchanged by
	// operators that read their upstream's meta, so a single trace
	// accumulates one operatorStep per stage instead of restarting at
	// every operator.
	TraceID string
}

// MetaCarrier is implemented by iterators that can report the meta of the
// value most recently produced by Next. Operators attach this to their own
// returned iterator type; it is read immediately after a value is produced,
// before the next pull, exactly as the spec requires.
type MetaCarrier interface {
	Meta() (Meta, bool)
}

// StampCarrier is implemented by iterators that can report the emission
// stamp of the value most recently produced by Next.
type StampCarrier interface {
	Stamp() (int64, bool)
}

// metaBox is the small mutable holder operator-produced iterators embed to
// implement MetaCarrier/StampCarrier without exposing mutation to callers.
type metaBox struct {
	mu      sync.Mutex
	meta    Meta
	hasMeta bool
	stamp   int64
	hasStmp bool
}

func (m *metaBox) setMeta(meta Meta) {
	m.mu.Lock()
	m.meta, m.hasMeta = meta, true
	m.mu.Unlock()
}

func (m *metaBox) Meta() (Meta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta, m.hasMeta
}

func (m *metaBox) setStamp(stamp int64) {
	m.mu.Lock()
	m.stamp, m.hasStmp = stamp, true
	m.mu.Unlock()
}

func (m *metaBox) Stamp() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stamp, m.hasStmp
}

// GetMeta reads the meta of the value most recently produced by it, if it
// implements MetaCarrier.
func GetMeta(it Iterator) (Meta, bool) {
	if mc, ok := it.(MetaCarrier); ok {
		return mc.Meta()
	}
	return Meta{}, false
}

// GetStamp reads the emission stamp of the value most recently produced by
// it, if it implements StampCarrier.
func GetStamp(it Iterator) (int64, bool) {
	if sc, ok := it.(StampCarrier); ok {
		return sc.Stamp()
	}
	return 0, false
}

// valueMeta is the transparent wrapper used when a value crosses an inner-
// stream boundary and loses its iterator identity (e.g. a mergeMap
// expansion): the tag rides with the value itself instead of the iterator.
type valueMeta struct {
	value any
	tag   Meta
}

// SetValueMeta wraps v with tag, recording which operator attached it. Use
// UnwrapPrimitive to retrieve the original value.
func SetValueMeta(v any, tag Meta, opIndex int, opName string) any {
	tag.OperatorIndex, tag.OperatorName = opIndex, opName
	return valueMeta{value: v, tag: tag}
}

// UnwrapPrimitive returns the original value carried by v, and its meta tag
// if v was wrapped by SetValueMeta.
func UnwrapPrimitive(v any) (any, Meta, bool) {
	if vm, ok := v.(valueMeta); ok {
		return vm.value, vm.tag, true
	}
	return v, Meta{}, false
}
