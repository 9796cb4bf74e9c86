// Package memory implements action.Log over in-process slices and maps. It
// backs the test suite and any deployment that does not need durability
// across restarts.
package memory

import (
	"sync"

	"github.com/conceptrt/conceptrt/model"
)

type edgeKey struct {
	completionsSig string
	sync           string
	bindingHash    uint64
}

// Log is an in-memory action.Log, safe for concurrent use.
type Log struct {
	mu          sync.Mutex
	invocations map[model.ID]model.ActionInvocation
	completions map[model.ID]model.ActionCompletion
	byFlow      map[model.ID][]model.Record
	edges       map[edgeKey]struct{}
}

// New returns an empty in-memory action log.
func New() *Log {
	return &Log{
		invocations: make(map[model.ID]model.ActionInvocation),
		completions: make(map[model.ID]model.ActionCompletion),
		byFlow:      make(map[model.ID][]model.Record),
		edges:       make(map[edgeKey]struct{}),
	}
}

func (l *Log) AppendInvocation(inv model.ActionInvocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invocations[inv.ID] = inv
	l.byFlow[inv.Flow] = append(l.byFlow[inv.Flow], model.Record{
		Kind:       model.RecordInvocation,
		Invocation: &inv,
		Flow:       inv.Flow,
	})
	return nil
}

func (l *Log) AppendCompletion(c model.ActionCompletion) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions[c.ID] = c
	l.byFlow[c.Flow] = append(l.byFlow[c.Flow], model.Record{
		Kind:       model.RecordCompletion,
		Completion: &c,
		Flow:       c.Flow,
	})
	return nil
}

func (l *Log) LoadFlow(flow model.ID) (model.Flow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := model.Flow{ID: flow}
	for _, rec := range l.byFlow[flow] {
		switch rec.Kind {
		case model.RecordInvocation:
			out.Invocations = append(out.Invocations, *rec.Invocation)
		case model.RecordCompletion:
			out.Completions = append(out.Completions, *rec.Completion)
		case model.RecordSyncEdge:
			out.Edges = append(out.Edges, *rec.Edge)
		}
	}
	return out, nil
}

func makeEdgeKey(completionIDs []model.ID, sync string, bindingHash uint64) edgeKey {
	edge := model.SyncEdge{CompletionIDs: completionIDs, Sync: sync, BindingHash: bindingHash}
	sorted := edge.SortedCompletionIDs()
	sig := make([]byte, 0, len(sorted)*16)
	for _, id := range sorted {
		sig = append(sig, id[:]...)
	}
	return edgeKey{completionsSig: string(sig), sync: sync, bindingHash: bindingHash}
}

func (l *Log) HasSyncEdge(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.edges[makeEdgeKey(completionIDs, sync, bindingHash)]
	return ok, nil
}

func (l *Log) AddSyncEdgeForMatch(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeEdgeKey(completionIDs, sync, bindingHash)
	if _, exists := l.edges[key]; exists {
		return false, nil
	}
	l.edges[key] = struct{}{}

	edge := model.SyncEdge{CompletionIDs: completionIDs, Sync: sync, BindingHash: bindingHash}
	var flow model.ID
	if len(completionIDs) > 0 {
		if c, ok := l.completions[completionIDs[0]]; ok {
			flow = c.Flow
		}
	}
	l.byFlow[flow] = append(l.byFlow[flow], model.Record{
		Kind: model.RecordSyncEdge,
		Edge: &edge,
		Flow: flow,
	})
	return true, nil
}

func (l *Log) Invocation(id model.ID) (model.ActionInvocation, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invocations[id]
	return inv, ok, nil
}

func (l *Log) Completion(id model.ID) (model.ActionCompletion, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.completions[id]
	return c, ok, nil
}
