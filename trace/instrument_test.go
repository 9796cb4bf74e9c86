package trace

import (
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

func TestInstrumentEmitsOneSpanPerNode(t *testing.T) {
	tracer := mocktracer.New()

	child := &Node{CompletionID: model.NewID(), Concept: "Echo", Action: "send", Variant: model.VariantOK, DurationMs: 5}
	root := &Node{
		CompletionID: model.NewID(), Concept: "Web", Action: "request", Variant: model.VariantOK,
		Children: []Edge{{Sync: "EchoRelay", Result: child}},
	}
	ft := &FlowTrace{FlowID: model.NewID(), Root: root, Status: StatusOK}

	Instrument(tracer, ft)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)

	var rootSpan, childSpan *mocktracer.MockSpan
	for _, s := range spans {
		if s.OperationName == "flow "+ft.FlowID.String() {
			rootSpan = s
		}
		if s.OperationName == "EchoRelay" {
			childSpan = s
		}
	}
	require.NotNil(t, rootSpan)
	require.NotNil(t, childSpan)
	require.Equal(t, string(StatusOK), rootSpan.Tag("status"))
	require.Equal(t, "Echo", childSpan.Tag("concept"))
	require.Equal(t, "send", childSpan.Tag("action"))
	require.Equal(t, model.VariantOK, childSpan.Tag("variant"))
	require.Equal(t, int64(5), childSpan.Tag("durationMs"))
	require.NotZero(t, childSpan.ParentID)
}

func TestInstrumentMarksUnfiredEdges(t *testing.T) {
	tracer := mocktracer.New()

	root := &Node{
		CompletionID: model.NewID(), Concept: "Web", Action: "request", Variant: model.VariantOK,
		Children: []Edge{{Sync: "EchoRelay", Unfired: true, Reason: "invocation dispatched, no completion yet"}},
	}
	ft := &FlowTrace{FlowID: model.NewID(), Root: root, Status: StatusPartial}

	Instrument(tracer, ft)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)

	var unfired *mocktracer.MockSpan
	for _, s := range spans {
		if s.OperationName == "EchoRelay" {
			unfired = s
		}
	}
	require.NotNil(t, unfired)
	require.Equal(t, true, unfired.Tag("unfired"))
	require.Equal(t, "invocation dispatched, no completion yet", unfired.Tag("reason"))
}

func TestInstrumentOnNilTracerOrTraceIsANoOp(t *testing.T) {
	Instrument(nil, &FlowTrace{Root: &Node{}})
	Instrument(mocktracer.New(), nil)
	Instrument(mocktracer.New(), &FlowTrace{})
}
