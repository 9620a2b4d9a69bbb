package tracer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// spanHandle pairs a started span with the context it was started under,
// so exitOperator can End it without the caller threading ctx through.
type spanHandle struct {
	ctx  context.Context
	span oteltrace.Span
}

// startOperatorSpan opens a span for one operator step, when t carries an
// otel tracer (set via Options.OTelTracer). Mirrors the retrieved pack's
// framework.Watchdog: a span per unit of work, annotated with
// attribute.String/Int events rather than becoming the sole source of
// truth — the in-process record remains authoritative for spec §3.3's
// invariants, the span is an observability side-channel onto it.
func (t *Tracer) startOperatorSpan(ctx context.Context, r *record, opIndex int, opName string, valueID string) context.Context {
	if t.otel == nil {
		return ctx
	}
	spanCtx, span := t.otel.Start(ctx, opName, oteltrace.WithAttributes(
		attribute.String("streamflow.value_id", valueID),
		attribute.Int("streamflow.operator_index", opIndex),
		attribute.String("streamflow.stream_name", r.streamName),
	))
	if r.spans == nil {
		r.spans = make(map[string]spanHandle)
	}
	r.spans[durationKey(opIndex, opName)] = spanHandle{ctx: spanCtx, span: span}
	return spanCtx
}

// endOperatorSpan closes the span opened by startOperatorSpan for this
// step, recording the outcome as a span attribute/event.
func (t *Tracer) endOperatorSpan(r *record, opIndex int, opName string, outcome Outcome, err error) {
	if t.otel == nil {
		return
	}
	key := durationKey(opIndex, opName)
	h, ok := r.spans[key]
	if !ok {
		return
	}
	delete(r.spans, key)
	h.span.AddEvent("streamflow.operator_exit", oteltrace.WithAttributes(
		attribute.String("streamflow.outcome", outcome.String()),
	))
	if err != nil {
		h.span.RecordError(err)
	}
	h.span.End()
}
