package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

func completion(concept, action string, input, output model.Fields) model.ActionCompletion {
	return model.ActionCompletion{
		ID:        model.NewID(),
		Concept:   concept,
		Action:    action,
		Input:     input,
		Output:    output,
		Variant:   model.VariantOK,
		Timestamp: time.Now(),
	}
}

func TestEnumerateMatchesSinglePattern(t *testing.T) {
	when := []model.WhenPattern{
		{Concept: "Echo", Action: "say", OutputFields: []model.FieldMatch{model.Variable("message", "msg")}},
	}
	pool := []model.ActionCompletion{
		completion("Echo", "say", nil, model.Fields{"message": "hi"}),
	}

	matches := EnumerateMatches(when, pool)
	require.Len(t, matches, 1)
	require.Equal(t, "hi", matches[0].Binding["msg"])
}

func TestEnumerateMatchesJoinAcrossPatterns(t *testing.T) {
	when := []model.WhenPattern{
		{Concept: "User", Action: "register", OutputFields: []model.FieldMatch{model.Variable("user", "u")}},
		{Concept: "Password", Action: "set", InputFields: []model.FieldMatch{model.Variable("user", "u")}},
	}
	pool := []model.ActionCompletion{
		completion("User", "register", nil, model.Fields{"user": "u1"}),
		completion("Password", "set", model.Fields{"user": "u1"}, nil),
		completion("Password", "set", model.Fields{"user": "u2"}, nil),
	}

	matches := EnumerateMatches(when, pool)
	require.Len(t, matches, 1, "only the password completion sharing the same user should join")
	require.Equal(t, "u1", matches[0].Binding["u"])
}

func TestEnumerateMatchesNoReuseOfSameCompletion(t *testing.T) {
	when := []model.WhenPattern{
		{Concept: "Lock", Action: "acquire"},
		{Concept: "Lock", Action: "acquire"},
	}
	pool := []model.ActionCompletion{
		completion("Lock", "acquire", nil, nil),
	}

	matches := EnumerateMatches(when, pool)
	require.Empty(t, matches, "a single completion cannot satisfy two when-patterns at once")
}

func TestEnumerateMatchesWildcardIgnoresValue(t *testing.T) {
	when := []model.WhenPattern{
		{Concept: "Echo", Action: "say", OutputFields: []model.FieldMatch{model.Wildcard("message")}},
	}
	pool := []model.ActionCompletion{
		completion("Echo", "say", nil, model.Fields{"message": "anything"}),
	}

	matches := EnumerateMatches(when, pool)
	require.Len(t, matches, 1)
	require.Empty(t, matches[0].Binding)
}

func TestEnumerateMatchesLiteralMismatch(t *testing.T) {
	when := []model.WhenPattern{
		{Concept: "Echo", Action: "say", OutputFields: []model.FieldMatch{model.Literal("message", "hi")}},
	}
	pool := []model.ActionCompletion{
		completion("Echo", "say", nil, model.Fields{"message": "bye"}),
	}

	require.Empty(t, EnumerateMatches(when, pool))
}
