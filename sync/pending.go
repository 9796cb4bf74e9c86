package sync

import (
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/conceptrt/conceptrt/model"
)

// PendingEntry is one invocation held back because its target concept was
// unavailable when an `eventual`-annotated sync fired. It is
// redelivered once the registry reports the concept available again, or
// dropped once it exceeds the queue's max age.
type PendingEntry struct {
	ID         model.ID
	Concept    string
	Invocation model.ActionInvocation
	EnqueuedAt time.Time
}

// PendingQueue holds PendingEntry values in enqueue order, backed by a
// gammazero/deque.Deque for O(1) push/pop at both ends. Draining and
// eviction both need to pull entries out of the middle of the queue, so
// both walk the whole thing and rebuild it rather than popping by index.
type PendingQueue struct {
	mu      sync.Mutex
	entries deque.Deque
}

// NewPendingQueue returns an empty PendingQueue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// Push enqueues an entry.
func (q *PendingQueue) Push(e PendingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries.PushBack(e)
}

// Len returns the number of pending entries.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// DrainConcept removes and returns every pending entry targeting concept, in
// original enqueue order, leaving the rest of the queue untouched.
func (q *PendingQueue) DrainConcept(concept string) []PendingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []PendingEntry
	var kept deque.Deque
	for q.entries.Len() > 0 {
		e := q.entries.PopFront().(PendingEntry)
		if e.Concept == concept {
			drained = append(drained, e)
		} else {
			kept.PushBack(e)
		}
	}
	q.entries = kept
	return drained
}

// EvictOlderThan removes every entry enqueued before the cutoff, returning
// how many were dropped. Called periodically by the distributed engine's
// eviction sweep.
func (q *PendingQueue) EvictOlderThan(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var kept deque.Deque
	dropped := 0
	for q.entries.Len() > 0 {
		e := q.entries.PopFront().(PendingEntry)
		if e.EnqueuedAt.Before(cutoff) {
			dropped++
			continue
		}
		kept.PushBack(e)
	}
	q.entries = kept
	return dropped
}
