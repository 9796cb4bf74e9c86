// Package sync implements the sync matcher, binder, and engine: matching completed actions against compiled sync rules,
// resolving their bindings, and firing the resulting invocations exactly
// once per distinct (completion set, binding).
package sync

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/conceptrt/conceptrt/action"
	"github.com/conceptrt/conceptrt/kernelmetrics"
	"github.com/conceptrt/conceptrt/model"
)

// Engine matches completed actions against compiled syncs and produces the
// invocations they fire. It is the single-process sync engine;
// DistributedEngine wraps one of these with cross-runtime annotation
// semantics.
type Engine struct {
	log       zerolog.Logger
	index     *Index
	actionLog action.Log
	query     QueryFunc
	newID     func() model.ID

	mu       sync.RWMutex
	degraded map[string]struct{}

	metrics *kernelmetrics.Collector
}

// SetMetrics attaches a metrics sink; nil disables recording (the default).
func (e *Engine) SetMetrics(m *kernelmetrics.Collector) {
	e.metrics = m
}

// New builds an Engine. query resolves WhereQuery clauses against other
// concepts' state through the lite-query adapter; actionLog backs the
// firing guard.
func New(log zerolog.Logger, actionLog action.Log, query QueryFunc) *Engine {
	return &Engine{
		log:       log.With().Str("component", "sync_engine").Logger(),
		index:     NewIndex(),
		actionLog: actionLog,
		query:     query,
		newID:     model.NewID,
		degraded:  make(map[string]struct{}),
	}
}

// RegisterSync adds or replaces one compiled sync, clearing any degradation
// mark it previously carried.
func (e *Engine) RegisterSync(s model.CompiledSync) {
	all := e.index.All()
	all[s.Name] = s
	e.index.Rebuild(all)

	e.mu.Lock()
	delete(e.degraded, s.Name)
	e.mu.Unlock()
}

// ReloadSyncs atomically replaces the whole sync set. Degradation marks are
// dropped only for syncs that no longer exist; a sync that survives a reload
// keeps its mark until a fresh availability signal clears it.
func (e *Engine) ReloadSyncs(syncs map[string]model.CompiledSync) {
	e.index.Rebuild(syncs)

	e.mu.Lock()
	for name := range e.degraded {
		if _, ok := syncs[name]; !ok {
			delete(e.degraded, name)
		}
	}
	e.mu.Unlock()
}

// OnCompletion evaluates every sync whose when-patterns reference c's
// (concept, action) against pool — typically the owning flow's completions
// so far, with c included — and returns the invocations those syncs fire.
// Each firing is guarded by the action log's atomic conditional edge, so
// concurrent or repeated evaluation of the same completion set never
// double-fires.
func (e *Engine) OnCompletion(c model.ActionCompletion, pool []model.ActionCompletion) ([]model.ActionInvocation, error) {
	var fired []model.ActionInvocation
	for _, s := range e.index.SyncsFor(c.Concept, c.Action) {
		// A degraded sync is paused only if it has no annotation that gives
		// the distributed engine a way to recover the firing later —
		// `eventual` queues it, `idempotent` tolerates a late retry. A plain
		// (eager) sync targeting a currently unavailable concept is not
		// worth evaluating at all.
		if e.IsDegraded(s.Name) && !s.Has(model.AnnotationEventual) && !s.Has(model.AnnotationIdempotent) {
			e.log.Debug().Str("sync", s.Name).Msg("skipping degraded sync")
			continue
		}
		invs, err := e.evalSync(s, pool)
		if err != nil {
			return nil, errors.Wrapf(err, "sync %q", s.Name)
		}
		fired = append(fired, invs...)
	}
	return fired, nil
}

func (e *Engine) evalSync(s model.CompiledSync, pool []model.ActionCompletion) ([]model.ActionInvocation, error) {
	var out []model.ActionInvocation
	for _, m := range EnumerateMatches(s.When, pool) {
		bindings, err := ApplyWhere(s.Where, m.Binding, e.query)
		if err != nil {
			return nil, err
		}
		for _, b := range bindings {
			invs, err := e.fire(s, m, b)
			if err != nil {
				return nil, err
			}
			out = append(out, invs...)
		}
	}
	return out, nil
}

// fire checks and sets the firing guard for one (completion set, binding)
// pair, then expands the then-templates into invocations if this call won
// the race.
func (e *Engine) fire(s model.CompiledSync, m Match, b Binding) ([]model.ActionInvocation, error) {
	ids := completionIDs(m.Completions)
	won, err := e.actionLog.AddSyncEdgeForMatch(ids, s.Name, b.hash())
	if err != nil {
		return nil, errors.Wrap(err, "could not set firing guard")
	}
	if !won {
		return nil, nil
	}
	e.metrics.RecordSyncFire(s.Name)

	results, err := ExpandThen(s.Then, b)
	if err != nil {
		return nil, err
	}

	parent := m.Completions[len(m.Completions)-1].ID
	flow := m.Completions[0].Flow
	out := make([]model.ActionInvocation, 0, len(results))
	for _, r := range results {
		out = append(out, model.ActionInvocation{
			ID:        e.newID(),
			Concept:   r.Concept,
			Action:    r.Action,
			Input:     r.Input,
			Flow:      flow,
			Timestamp: time.Now(),
			Sync:      s.Name,
			Parent:    parent,
		})
	}
	return out, nil
}

func completionIDs(cs []model.ActionCompletion) []model.ID {
	ids := make([]model.ID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// DegradeForConcept marks every sync targeting concept as degraded, called
// when the registry reports concept unavailable.
func (e *Engine) DegradeForConcept(concept string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, s := range e.index.All() {
		if targets(s, concept) {
			e.degraded[name] = struct{}{}
		}
	}
}

// UndegradeForConcept clears the degraded mark for syncs targeting concept,
// called when the registry reports concept available again.
func (e *Engine) UndegradeForConcept(concept string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, s := range e.index.All() {
		if targets(s, concept) {
			delete(e.degraded, name)
		}
	}
}

func targets(s model.CompiledSync, concept string) bool {
	for _, t := range s.TargetConcepts() {
		if t == concept {
			return true
		}
	}
	return false
}

// IsDegraded reports whether name is currently degraded.
func (e *Engine) IsDegraded(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.degraded[name]
	return ok
}

// DegradedSyncs returns the names of every currently degraded sync.
func (e *Engine) DegradedSyncs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.degraded))
	for name := range e.degraded {
		out = append(out, name)
	}
	return out
}
