package badger

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/conceptrt/conceptrt/model"
)

// One-byte prefix per record kind, keeping a flat keyspace partitioned
// without separate buckets.
const (
	codeInvocationByFlow = 0x01 // {flow}{timestamp}{id} -> ActionInvocation
	codeCompletionByFlow = 0x02 // {flow}{timestamp}{id} -> ActionCompletion
	codeEdgeByFlow       = 0x03 // {flow}{timestamp}{sync} -> SyncEdge
	codeInvocationByID   = 0x04 // {id} -> ActionInvocation
	codeCompletionByID   = 0x05 // {id} -> ActionCompletion
	codeEdgeGuard        = 0x06 // {sha(sortedCompletionIDs)}{sync}{bindingHash} -> SyncEdge
)

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func flowTimestampKey(code byte, flow model.ID, ts int64, suffix []byte) []byte {
	key := make([]byte, 0, 1+16+8+len(suffix))
	key = append(key, code)
	key = append(key, flow[:]...)
	key = append(key, be64(uint64(ts))...)
	key = append(key, suffix...)
	return key
}

func idKey(code byte, id model.ID) []byte {
	key := make([]byte, 0, 1+16)
	key = append(key, code)
	key = append(key, id[:]...)
	return key
}

// guardKey builds the canonical hash-based key for the distributed firing
// guard: sha256 over the sorted completion IDs, concatenated with the sync
// name and the binding hash.
func guardKey(completionIDs []model.ID, sync string, bindingHash uint64) []byte {
	edge := model.SyncEdge{CompletionIDs: completionIDs, Sync: sync, BindingHash: bindingHash}
	sorted := edge.SortedCompletionIDs()

	h := sha256.New()
	for _, id := range sorted {
		h.Write(id[:])
	}
	sum := h.Sum(nil)

	key := make([]byte, 0, 1+len(sum)+len(sync)+8)
	key = append(key, codeEdgeGuard)
	key = append(key, sum...)
	key = append(key, []byte(sync)...)
	key = append(key, be64(bindingHash)...)
	return key
}
