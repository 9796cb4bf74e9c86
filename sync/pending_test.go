package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

func TestPendingQueuePushAndLen(t *testing.T) {
	q := NewPendingQueue()
	require.Equal(t, 0, q.Len())

	q.Push(PendingEntry{ID: model.NewID(), Concept: "Notification", EnqueuedAt: time.Now()})
	q.Push(PendingEntry{ID: model.NewID(), Concept: "Billing", EnqueuedAt: time.Now()})
	require.Equal(t, 2, q.Len())
}

func TestPendingQueueDrainConceptOnlyRemovesMatching(t *testing.T) {
	q := NewPendingQueue()
	a := PendingEntry{ID: model.NewID(), Concept: "Notification", EnqueuedAt: time.Now()}
	b := PendingEntry{ID: model.NewID(), Concept: "Billing", EnqueuedAt: time.Now()}
	c := PendingEntry{ID: model.NewID(), Concept: "Notification", EnqueuedAt: time.Now()}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	drained := q.DrainConcept("Notification")
	require.Len(t, drained, 2)
	require.Equal(t, a.ID, drained[0].ID)
	require.Equal(t, c.ID, drained[1].ID)
	require.Equal(t, 1, q.Len())
}

func TestPendingQueueEvictOlderThan(t *testing.T) {
	q := NewPendingQueue()
	old := PendingEntry{ID: model.NewID(), Concept: "X", EnqueuedAt: time.Now().Add(-time.Hour)}
	fresh := PendingEntry{ID: model.NewID(), Concept: "X", EnqueuedAt: time.Now()}
	q.Push(old)
	q.Push(fresh)

	dropped := q.EvictOlderThan(time.Now().Add(-time.Minute))
	require.Equal(t, 1, dropped)
	require.Equal(t, 1, q.Len())

	remaining := q.DrainConcept("X")
	require.Len(t, remaining, 1)
	require.Equal(t, fresh.ID, remaining[0].ID)
}
