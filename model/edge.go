package model

import (
	"sort"
)

// SyncEdge asserts that an exact set of completions has already triggered a
// named sync with a specific binding — the primary idempotency key. Two edges with identical (CompletionIDs, Sync,
// BindingHash) are the same firing and must never both exist.
type SyncEdge struct {
	CompletionIDs []ID
	Sync          string
	BindingHash   uint64
}

// SortedCompletionIDs returns a copy of CompletionIDs in canonical (sorted)
// order, used to build the guard key deterministically regardless of
// binding-enumeration order.
func (e SyncEdge) SortedCompletionIDs() []ID {
	out := make([]ID, len(e.CompletionIDs))
	copy(out, e.CompletionIDs)
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}
