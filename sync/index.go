package sync

import (
	"sync/atomic"

	"github.com/conceptrt/conceptrt/model"
)

// Index maps a completed (concept, action) key to the syncs that reference
// it in any when-pattern, so the engine only evaluates syncs that could
// possibly fire on a given completion. Rebuilt wholesale on
// every registerSync/reloadSyncs and swapped in atomically so a dispatch in
// flight never observes a half-rebuilt index.
type Index struct {
	v atomic.Value // holds indexSnapshot
}

type indexSnapshot struct {
	byKey map[model.Key][]string
	specs map[string]model.CompiledSync
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	idx := &Index{}
	idx.v.Store(indexSnapshot{byKey: map[model.Key][]string{}, specs: map[string]model.CompiledSync{}})
	return idx
}

// Rebuild replaces the index contents with the given syncs, keyed by every
// concept/action their when-patterns reference.
func (idx *Index) Rebuild(syncs map[string]model.CompiledSync) {
	byKey := make(map[model.Key][]string)
	specs := make(map[string]model.CompiledSync, len(syncs))
	for name, s := range syncs {
		specs[name] = s
		seen := make(map[model.Key]struct{})
		for _, w := range s.When {
			k := model.KeyOf(w.Concept, w.Action)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			byKey[k] = append(byKey[k], name)
		}
	}
	idx.v.Store(indexSnapshot{byKey: byKey, specs: specs})
}

// SyncsFor returns the syncs whose when-patterns reference (concept, action).
func (idx *Index) SyncsFor(concept, action string) []model.CompiledSync {
	snap := idx.v.Load().(indexSnapshot)
	names := snap.byKey[model.KeyOf(concept, action)]
	out := make([]model.CompiledSync, 0, len(names))
	for _, n := range names {
		out = append(out, snap.specs[n])
	}
	return out
}

// Get returns a single sync by name.
func (idx *Index) Get(name string) (model.CompiledSync, bool) {
	snap := idx.v.Load().(indexSnapshot)
	s, ok := snap.specs[name]
	return s, ok
}

// All returns every registered sync.
func (idx *Index) All() map[string]model.CompiledSync {
	snap := idx.v.Load().(indexSnapshot)
	out := make(map[string]model.CompiledSync, len(snap.specs))
	for k, v := range snap.specs {
		out[k] = v
	}
	return out
}
