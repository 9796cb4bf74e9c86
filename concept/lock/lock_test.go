package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage/memory"
)

func checkOutAs(t *testing.T, store *memory.Store, resource, who string) model.ActionCompletion {
	t.Helper()
	return Handler(context.Background(), store, model.ActionInvocation{
		Action: "checkOut", Input: model.Fields{"resource": resource, "who": who},
	})
}

func TestPessimisticLockScenario(t *testing.T) {
	store := memory.New()

	first := checkOutAs(t, store, "r", "alice")
	require.Equal(t, model.VariantOK, first.Variant)
	lockID, _ := first.Output["lockId"].(string)
	require.NotEmpty(t, lockID)

	second := checkOutAs(t, store, "r", "alice")
	require.Equal(t, model.VariantOK, second.Variant)
	require.Equal(t, lockID, second.Output["lockId"])

	third := checkOutAs(t, store, "r", "bob")
	require.Equal(t, variantQueued, third.Variant)
	require.Equal(t, 1, third.Output["position"])

	checkIn := Handler(context.Background(), store, model.ActionInvocation{
		Action: "checkIn", Input: model.Fields{"lockId": lockID},
	})
	require.Equal(t, model.VariantOK, checkIn.Variant)

	fourth := checkOutAs(t, store, "r", "bob")
	require.Equal(t, model.VariantOK, fourth.Variant)

	row, found, err := store.Get(relationQueue, "r")
	require.NoError(t, err)
	require.False(t, found, "queue must be empty once bob holds the lock")
	require.Empty(t, row)
}
