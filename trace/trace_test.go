package trace

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memlog "github.com/conceptrt/conceptrt/action/memory"
	"github.com/conceptrt/conceptrt/model"
)

// seedEcho replays, record for record, the same three-completion/two-edge
// shape the kernel produces for the "echo request" scenario: Web/request -> (HandleEcho) -> Echo/send -> (EchoResponse)
// -> Web/respond.
func seedEcho(t *testing.T) (*memlog.Log, model.ID, model.ID, model.ID, model.ID) {
	t.Helper()
	log := memlog.New()
	flow := model.NewID()

	reqID := model.NewID()
	req := model.ActionCompletion{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: time.Now(), Variant: model.VariantOK}
	require.NoError(t, log.AppendInvocation(model.ActionInvocation{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: req.Timestamp}))
	require.NoError(t, log.AppendCompletion(req))

	sendInvID := model.NewID()
	sendInv := model.ActionInvocation{ID: sendInvID, Concept: "Echo", Action: "send", Flow: flow, Sync: "HandleEcho", Parent: reqID, Timestamp: time.Now()}
	require.NoError(t, log.AppendInvocation(sendInv))
	_, err := log.AddSyncEdgeForMatch([]model.ID{reqID}, "HandleEcho", 1)
	require.NoError(t, err)

	sendComp := model.ActionCompletion{ID: sendInvID, Concept: "Echo", Action: "send", Flow: flow, Variant: model.VariantOK, Timestamp: sendInv.Timestamp.Add(2 * time.Millisecond)}
	require.NoError(t, log.AppendCompletion(sendComp))

	respondInvID := model.NewID()
	respondInv := model.ActionInvocation{ID: respondInvID, Concept: "Web", Action: "respond", Flow: flow, Sync: "EchoResponse", Parent: sendInvID, Timestamp: time.Now()}
	require.NoError(t, log.AppendInvocation(respondInv))
	_, err = log.AddSyncEdgeForMatch([]model.ID{reqID, sendInvID}, "EchoResponse", 2)
	require.NoError(t, err)

	respondComp := model.ActionCompletion{ID: respondInvID, Concept: "Web", Action: "respond", Flow: flow, Variant: model.VariantOK, Timestamp: respondInv.Timestamp.Add(time.Millisecond)}
	require.NoError(t, log.AppendCompletion(respondComp))

	return log, flow, reqID, sendInvID, respondInvID
}

func TestGetFlowTraceBuildsThreeNodeTree(t *testing.T) {
	log, flow, reqID, sendID, respondID := seedEcho(t)

	ft, err := GetFlowTrace(log, flow)
	require.NoError(t, err)
	require.NotNil(t, ft)
	require.Equal(t, StatusOK, ft.Status)
	require.Equal(t, 3, ft.NodeCount)

	require.Equal(t, reqID, ft.Root.CompletionID)
	require.Len(t, ft.Root.Children, 1)
	require.Equal(t, "HandleEcho", ft.Root.Children[0].Sync)
	require.False(t, ft.Root.Children[0].Unfired)

	sendNode := ft.Root.Children[0].Result
	require.Equal(t, sendID, sendNode.CompletionID)
	require.Len(t, sendNode.Children, 1)
	require.Equal(t, "EchoResponse", sendNode.Children[0].Sync)

	respondNode := sendNode.Children[0].Result
	require.Equal(t, respondID, respondNode.CompletionID)
	require.Empty(t, respondNode.Children)
}

func TestGetFlowTraceUnknownFlowReturnsNil(t *testing.T) {
	log := memlog.New()
	ft, err := GetFlowTrace(log, model.NewID())
	require.NoError(t, err)
	require.Nil(t, ft)
}

func TestGetFlowTraceStatusFailedWhenResponseErrors(t *testing.T) {
	log := memlog.New()
	flow := model.NewID()

	reqID := model.NewID()
	req := model.ActionCompletion{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: time.Now(), Variant: model.VariantOK}
	require.NoError(t, log.AppendInvocation(model.ActionInvocation{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: req.Timestamp}))
	require.NoError(t, log.AppendCompletion(req))

	respondInvID := model.NewID()
	respondInv := model.ActionInvocation{ID: respondInvID, Concept: "Web", Action: "respond", Flow: flow, Sync: "Reject", Parent: reqID, Timestamp: time.Now()}
	require.NoError(t, log.AppendInvocation(respondInv))
	_, err := log.AddSyncEdgeForMatch([]model.ID{reqID}, "Reject", 9)
	require.NoError(t, err)
	respondComp := model.ActionCompletion{ID: respondInvID, Concept: "Web", Action: "respond", Flow: flow, Variant: model.VariantError, Timestamp: respondInv.Timestamp.Add(time.Millisecond)}
	require.NoError(t, log.AppendCompletion(respondComp))

	ft, err := GetFlowTrace(log, flow)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, ft.Status)
}

func TestGetFlowTraceMarksUnfiredWhenInvocationNeverCompletes(t *testing.T) {
	log := memlog.New()
	flow := model.NewID()

	reqID := model.NewID()
	req := model.ActionCompletion{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: time.Now(), Variant: model.VariantOK}
	require.NoError(t, log.AppendInvocation(model.ActionInvocation{ID: reqID, Concept: "Web", Action: "request", Flow: flow, Timestamp: req.Timestamp}))
	require.NoError(t, log.AppendCompletion(req))

	// An edge was recorded (the sync fired and won the guard) but the
	// resulting invocation was deferred (e.g. an `eventual` sync whose
	// target was unavailable) and never reached the log.
	_, err := log.AddSyncEdgeForMatch([]model.ID{reqID}, "SyncToServer", 7)
	require.NoError(t, err)

	ft, err := GetFlowTrace(log, flow)
	require.NoError(t, err)
	require.Len(t, ft.Root.Children, 1)
	require.True(t, ft.Root.Children[0].Unfired)
	require.Equal(t, StatusOK, ft.Status, "an unfired edge alone doesn't fail the flow")
}

func TestPrettyAndJSONRenderTree(t *testing.T) {
	log, flow, _, _, _ := seedEcho(t)
	ft, err := GetFlowTrace(log, flow)
	require.NoError(t, err)

	pretty := Pretty(ft, false)
	require.True(t, strings.Contains(pretty, "Web/request"))
	require.True(t, strings.Contains(pretty, "Echo/send"))
	require.True(t, strings.Contains(pretty, "Web/respond"))

	raw, err := JSON(ft, false)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"status": "ok"`)
}

func TestPrettyFailedOnlyElidesOKSubtrees(t *testing.T) {
	log, flow, _, _, _ := seedEcho(t)
	ft, err := GetFlowTrace(log, flow)
	require.NoError(t, err)

	pretty := Pretty(ft, true)
	require.False(t, strings.Contains(pretty, "Echo/send"), "an all-ok subtree must be elided under failedOnly")
}
