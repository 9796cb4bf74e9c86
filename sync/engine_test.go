package sync

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	memlog "github.com/conceptrt/conceptrt/action/memory"
	"github.com/conceptrt/conceptrt/model"
)

func registerSync(t *testing.T) (*Engine, model.ID) {
	t.Helper()
	e := New(zerolog.Nop(), memlog.New(), nil)
	e.RegisterSync(model.CompiledSync{
		Name: "Echo.say -> Notification.send",
		When: []model.WhenPattern{
			{Concept: "Echo", Action: "say", OutputFields: []model.FieldMatch{model.Variable("message", "msg")}},
		},
		Then: []model.ThenTemplate{
			{Concept: "Notification", Action: "send", Fields: []model.ThenField{
				{Name: "text", Kind: model.MatchVariable, Var: "msg"},
			}},
		},
	})
	return e, model.NewID()
}

func TestEngineFiresOnMatchingCompletion(t *testing.T) {
	e, flow := registerSync(t)
	c := completion("Echo", "say", nil, model.Fields{"message": "hi"})
	c.Flow = flow

	invs, err := e.OnCompletion(c, []model.ActionCompletion{c})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.Equal(t, "Notification", invs[0].Concept)
	require.Equal(t, "hi", invs[0].Input["text"])
	require.Equal(t, flow, invs[0].Flow)
}

func TestEngineFiringGuardPreventsDoubleFire(t *testing.T) {
	e, flow := registerSync(t)
	c := completion("Echo", "say", nil, model.Fields{"message": "hi"})
	c.Flow = flow
	pool := []model.ActionCompletion{c}

	first, err := e.OnCompletion(c, pool)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := e.OnCompletion(c, pool)
	require.NoError(t, err)
	require.Empty(t, second, "re-evaluating the same completion set must not fire again")
}

func TestEngineIgnoresUnrelatedCompletion(t *testing.T) {
	e, flow := registerSync(t)
	c := completion("Other", "noop", nil, nil)
	c.Flow = flow

	invs, err := e.OnCompletion(c, []model.ActionCompletion{c})
	require.NoError(t, err)
	require.Empty(t, invs)
}

func TestEngineDegradeBlocksEagerSync(t *testing.T) {
	e, flow := registerSync(t)
	e.DegradeForConcept("Notification")

	c := completion("Echo", "say", nil, model.Fields{"message": "hi"})
	c.Flow = flow

	invs, err := e.OnCompletion(c, []model.ActionCompletion{c})
	require.NoError(t, err)
	require.Empty(t, invs, "an eager sync targeting an unavailable concept should not fire")

	e.UndegradeForConcept("Notification")
	invs, err = e.OnCompletion(c, []model.ActionCompletion{c})
	require.NoError(t, err)
	require.Len(t, invs, 1)
}

func TestEngineReloadSyncsDropsRemoved(t *testing.T) {
	e, flow := registerSync(t)
	e.ReloadSyncs(map[string]model.CompiledSync{})

	c := completion("Echo", "say", nil, model.Fields{"message": "hi"})
	c.Flow = flow

	invs, err := e.OnCompletion(c, []model.ActionCompletion{c})
	require.NoError(t, err)
	require.Empty(t, invs)
}
