package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

func TestAttemptResolveIsCommutative(t *testing.T) {
	a := Handler(context.Background(), nil, model.ActionInvocation{
		Action: "attemptResolve", Input: model.Fields{"v1": "zebra", "v2": "alpha"},
	})
	b := Handler(context.Background(), nil, model.ActionInvocation{
		Action: "attemptResolve", Input: model.Fields{"v1": "alpha", "v2": "zebra"},
	})
	require.Equal(t, a.Output["values"], b.Output["values"])
	require.Equal(t, []interface{}{"alpha", "zebra"}, a.Output["values"])
}
