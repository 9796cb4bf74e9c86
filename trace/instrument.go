package trace

import (
	"github.com/opentracing/opentracing-go"
)

// Instrument emits one opentracing span per node in ft, nested to match the
// tree (a root span for the flow, a child span per invocation it drove).
// This is purely an observability side channel: it never feeds back into
// tree reconstruction, so a no-op tracer (or a nil one) changes nothing
// about GetFlowTrace's output.
func Instrument(tracer opentracing.Tracer, ft *FlowTrace) {
	if tracer == nil || ft == nil || ft.Root == nil {
		return
	}
	rootSpan := tracer.StartSpan("flow " + ft.FlowID.String())
	rootSpan.SetTag("status", string(ft.Status))
	instrumentNode(tracer, rootSpan, ft.Root)
	rootSpan.Finish()
}

func instrumentNode(tracer opentracing.Tracer, parent opentracing.Span, n *Node) {
	for _, e := range n.Children {
		if e.Unfired {
			span := tracer.StartSpan(e.Sync, opentracing.ChildOf(parent.Context()))
			span.SetTag("unfired", true)
			span.SetTag("reason", e.Reason)
			span.Finish()
			continue
		}
		span := tracer.StartSpan(e.Sync, opentracing.ChildOf(parent.Context()))
		span.SetTag("concept", e.Result.Concept)
		span.SetTag("action", e.Result.Action)
		span.SetTag("variant", e.Result.Variant)
		span.SetTag("durationMs", e.Result.DurationMs)
		instrumentNode(tracer, span, e.Result)
		span.Finish()
	}
}
