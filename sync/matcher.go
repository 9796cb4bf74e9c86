package sync

import (
	"fmt"

	"github.com/jrick/bitset"

	"github.com/conceptrt/conceptrt/model"
)

// Match is one way a sync's `when` patterns can be satisfied against a pool
// of completions: one completion per pattern, plus the binding accumulated
// from their fields.
type Match struct {
	Completions []model.ActionCompletion
	Binding     Binding
}

// EnumerateMatches finds every way to pick one completion per when-pattern
// from pool such that fields match and shared variables agree across
// patterns. A single pool completion is never reused across
// two patterns within the same candidate tuple: a bitset over pool indices
// tracks which positions the current partial tuple has already consumed,
// cleared on backtrack.
func EnumerateMatches(when []model.WhenPattern, pool []model.ActionCompletion) []Match {
	if len(when) == 0 || len(pool) == 0 {
		return nil
	}

	used := bitset.NewBytes(len(pool))
	chosen := make([]model.ActionCompletion, len(when))
	var results []Match

	var recurse func(i int, b Binding)
	recurse = func(i int, b Binding) {
		if i == len(when) {
			out := make([]model.ActionCompletion, len(chosen))
			copy(out, chosen)
			results = append(results, Match{Completions: out, Binding: b.Clone()})
			return
		}
		pat := when[i]
		for pos, c := range pool {
			if used.Get(pos) {
				continue
			}
			nb, ok := matchPattern(pat, c, b)
			if !ok {
				continue
			}
			used.Set(pos)
			chosen[i] = c
			recurse(i+1, nb)
			used.Unset(pos)
		}
	}
	recurse(0, Binding{})
	return results
}

// matchPattern tests a single completion against a single when-pattern,
// returning the binding extended with any newly bound variables. An
// already-bound variable that disagrees with the completion's field value
// fails the match (the cross-pattern join condition).
func matchPattern(p model.WhenPattern, c model.ActionCompletion, b Binding) (Binding, bool) {
	if c.Concept != p.Concept || c.Action != p.Action {
		return nil, false
	}

	nb := b.Clone()
	for _, fm := range p.InputFields {
		v, present := c.Input.Get(fm.Name)
		if !bindField(fm, v, present, nb) {
			return nil, false
		}
	}
	for _, fm := range p.OutputFields {
		v, present := c.Output.Get(fm.Name)
		if !bindField(fm, v, present, nb) {
			return nil, false
		}
	}
	return nb, true
}

func bindField(fm model.FieldMatch, v interface{}, present bool, b Binding) bool {
	switch fm.Kind {
	case model.MatchLiteral:
		return present && valuesEqual(v, fm.Value)
	case model.MatchVariable:
		if !present {
			return false
		}
		if existing, ok := b[fm.Var]; ok {
			return valuesEqual(existing, v)
		}
		b[fm.Var] = v
		return true
	case model.MatchWildcard:
		return true
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
