// Package trace implements the flow tracer: it rebuilds a
// per-flow tree of invocations and completions from the action log, without
// touching the sync engine or registry.
package trace

import (
	"time"

	"github.com/conceptrt/conceptrt/action"
	"github.com/conceptrt/conceptrt/model"
)

// Status summarizes a flow trace's overall health.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Edge is one sync firing linking a triggering node to the node it produced
// (or, if the invocation never completed, a marker that it is still
// outstanding).
type Edge struct {
	Sync    string
	Unfired bool
	Reason  string
	Result  *Node
}

// Node is one completion in the flow, plus every sync edge it triggered.
type Node struct {
	CompletionID model.ID
	Concept      string
	Action       string
	Variant      string
	DurationMs   int64
	Children     []Edge
}

// FlowTrace is the root of a rebuilt flow.
type FlowTrace struct {
	FlowID   model.ID
	Root     *Node
	Status   Status
	NodeCount int
}

// invocationKey groups invocations by the completion that triggered them and
// the sync that fired them — the join key engine.fire stamps on every
// invocation a sync produces (Parent, Sync), used to reattach a SyncEdge to
// the invocation(s) it actually produced.
type invocationKey struct {
	parent model.ID
	sync   string
}

// GetFlowTrace rebuilds flowId's tree from log, or returns (nil, nil) if the
// flow has no records. The reconstruction is two passes: first index every
// record by the keys the second pass needs, then walk the tree recursively
// from the root, computing duration and status bottom-up as each node
// returns.
func GetFlowTrace(log action.Log, flowID model.ID) (*FlowTrace, error) {
	flow, err := log.LoadFlow(flowID)
	if err != nil {
		return nil, err
	}
	if len(flow.Completions) == 0 {
		return nil, nil
	}

	// Pass 1: index.
	completionsByID := make(map[model.ID]model.ActionCompletion, len(flow.Completions))
	for _, c := range flow.Completions {
		completionsByID[c.ID] = c
	}
	invocationsByID := make(map[model.ID]model.ActionInvocation, len(flow.Invocations))
	invocationsByKey := make(map[invocationKey][]model.ActionInvocation)
	for _, inv := range flow.Invocations {
		invocationsByID[inv.ID] = inv
		if inv.Sync != "" {
			key := invocationKey{parent: inv.Parent, sync: inv.Sync}
			invocationsByKey[key] = append(invocationsByKey[key], inv)
		}
	}
	edgesByParent := make(map[model.ID][]model.SyncEdge)
	for _, e := range flow.Edges {
		if len(e.CompletionIDs) == 0 {
			continue
		}
		parent := e.CompletionIDs[len(e.CompletionIDs)-1]
		edgesByParent[parent] = append(edgesByParent[parent], e)
	}

	root := findRoot(flow)
	if root == nil {
		return nil, nil
	}

	visited := make(map[model.ID]bool)
	count := 0
	rootNode := buildNode(*root, invocationsByID, completionsByID, invocationsByKey, edgesByParent, visited, &count)

	return &FlowTrace{
		FlowID:    flowID,
		Root:      rootNode,
		Status:    status(rootNode),
		NodeCount: count,
	}, nil
}

// findRoot picks the Web/request completion, or (if absent, e.g. a synthetic
// flow seeded some other way) the completion with no parent.
func findRoot(flow model.Flow) *model.ActionCompletion {
	for _, c := range flow.Completions {
		if c.Concept == "Web" && c.Action == "request" {
			cc := c
			return &cc
		}
	}
	for _, c := range flow.Completions {
		if c.Parent.IsZero() {
			cc := c
			return &cc
		}
	}
	if len(flow.Completions) > 0 {
		cc := flow.Completions[0]
		return &cc
	}
	return nil
}

func buildNode(
	c model.ActionCompletion,
	invocationsByID map[model.ID]model.ActionInvocation,
	completionsByID map[model.ID]model.ActionCompletion,
	invocationsByKey map[invocationKey][]model.ActionInvocation,
	edgesByParent map[model.ID][]model.SyncEdge,
	visited map[model.ID]bool,
	count *int,
) *Node {
	if visited[c.ID] {
		// A completion cannot legitimately trigger a cycle back to itself;
		// guard against it anyway so a corrupt log can't hang the tracer.
		return &Node{CompletionID: c.ID, Concept: c.Concept, Action: c.Action, Variant: c.Variant}
	}
	visited[c.ID] = true
	*count++

	n := &Node{
		CompletionID: c.ID,
		Concept:      c.Concept,
		Action:       c.Action,
		Variant:      c.Variant,
	}
	if inv, ok := invocationsByID[c.ID]; ok {
		n.DurationMs = durationMs(inv.Timestamp, c.Timestamp)
	}

	for _, e := range edgesByParent[c.ID] {
		children := invocationsByKey[invocationKey{parent: c.ID, sync: e.Sync}]
		if len(children) == 0 {
			n.Children = append(n.Children, Edge{Sync: e.Sync, Unfired: true, Reason: "no invocation recorded for this firing (pending delivery or dropped)"})
			continue
		}
		for _, inv := range children {
			rc, ok := completionsByID[inv.ID]
			if !ok {
				n.Children = append(n.Children, Edge{Sync: e.Sync, Unfired: true, Reason: "invocation dispatched, no completion yet"})
				continue
			}
			child := buildNode(rc, invocationsByID, completionsByID, invocationsByKey, edgesByParent, visited, count)
			n.Children = append(n.Children, Edge{Sync: e.Sync, Result: child})
		}
	}

	return n
}

func durationMs(invTS, compTS time.Time) int64 {
	if invTS.IsZero() || compTS.IsZero() {
		return 0
	}
	d := compTS.Sub(invTS).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// status folds variant outcomes bottom-up: ok only if every node in the
// tree is ok; failed if the root or any responding node is an error;
// partial otherwise.
func status(root *Node) Status {
	hasError := false
	allOK := true
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Variant == model.VariantError {
			hasError = true
		}
		if n.Variant != model.VariantOK {
			allOK = false
		}
		for _, e := range n.Children {
			walk(e.Result)
		}
	}
	walk(root)

	switch {
	case allOK:
		return StatusOK
	case root != nil && root.Variant == model.VariantError:
		return StatusFailed
	case isRespondError(root):
		return StatusFailed
	case hasError:
		return StatusPartial
	default:
		return StatusPartial
	}
}

// isRespondError reports whether the tree contains a Web/respond completion
// with an error variant — that one completion fails the whole flow even
// when the root itself succeeded.
func isRespondError(root *Node) bool {
	found := false
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || found {
			return
		}
		if n.Concept == "Web" && n.Action == "respond" && n.Variant == model.VariantError {
			found = true
			return
		}
		for _, e := range n.Children {
			walk(e.Result)
		}
	}
	walk(root)
	return found
}
