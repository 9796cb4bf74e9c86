// Package action defines the action log: an append-only
// record of invocations, completions, and sync-provenance edges. Two views
// over the same append sequence are exposed — by flow, and by edge (the
// firing guard).
package action

import "github.com/conceptrt/conceptrt/model"

// Log is the action log contract. Durable backends must make AddSyncEdgeForMatch a
// conditional put keyed by (completionIDs sorted, sync, bindingHash) — this
// is the distributed firing guard. Failure of that condition is the normal
// no-fire path, not an error.
type Log interface {
	// AppendInvocation records an invocation. Must be called before the
	// matching completion is appended.
	AppendInvocation(inv model.ActionInvocation) error

	// AppendCompletion records a completion. The matching invocation must
	// already be present.
	AppendCompletion(c model.ActionCompletion) error

	// LoadFlow returns every record belonging to flow, in append order.
	LoadFlow(flow model.ID) (model.Flow, error)

	// HasSyncEdge reports whether (completionIDs, sync, bindingHash) has
	// already fired.
	HasSyncEdge(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error)

	// AddSyncEdgeForMatch atomically records the firing guard for
	// (completionIDs, sync, bindingHash). It returns (true, nil) if this
	// call won the race and the edge is newly set, (false, nil) if another
	// caller already set it — the normal no-fire path, never an error.
	AddSyncEdgeForMatch(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error)

	// Invocation looks up a single invocation by ID, used by the flow
	// tracer to compute per-node duration without loading the whole flow.
	Invocation(id model.ID) (model.ActionInvocation, bool, error)

	// Completion looks up a single completion by ID.
	Completion(id model.ID) (model.ActionCompletion, bool, error)
}
