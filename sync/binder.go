package sync

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// QueryFunc resolves a WhereQuery clause against another concept's state
// through the lite-query adapter; the engine supplies one
// bound to its registry of adapters.
type QueryFunc func(concept, relation string, filter storage.Filter) ([]model.Fields, error)

// ApplyWhere evaluates a sync's where-clauses against a single binding
// produced by EnumerateMatches, in declaration order. WhereBind and
// WherePredicate operate on exactly one binding each; WhereQuery can fan a
// single binding out into zero or more (one per matching row), since a
// query can return multiple rows — this is how a sync resolves to multiple
// firings from one completion ("multi-value resolution").
func ApplyWhere(clauses []model.WhereClause, start Binding, query QueryFunc) ([]Binding, error) {
	bindings := []Binding{start}

	for _, clause := range clauses {
		var next []Binding
		for _, b := range bindings {
			switch clause.Kind {
			case model.WhereBind:
				v, err := evalExpr(clause.Expr, b)
				if err != nil {
					return nil, errors.Wrapf(err, "where-bind %q", clause.As)
				}
				nb := b.Clone()
				nb[clause.As] = v
				next = append(next, nb)

			case model.WherePredicate:
				v, err := evalExpr(clause.Expr, b)
				if err != nil {
					return nil, errors.Wrap(err, "where-predicate")
				}
				if truthy(v) {
					next = append(next, b)
				}
				// a false predicate discards this binding silently — normal
				// filtering, not an error.

			case model.WhereQuery:
				rows, err := resolveQuery(clause, b, query)
				if err != nil {
					return nil, err
				}
				for _, row := range rows {
					nb := b.Clone()
					for field, varName := range clause.Bindings {
						if v, ok := row.Get(field); ok {
							nb[varName] = v
						}
					}
					next = append(next, nb)
				}

			default:
				return nil, errors.Errorf("unknown where-clause kind %v", clause.Kind)
			}
		}
		bindings = next
		if len(bindings) == 0 {
			return nil, nil
		}
	}
	return bindings, nil
}

// resolveQuery builds the query filter from whichever of clause.Bindings'
// variables are already bound, leaving the rest to be populated from result
// rows.
func resolveQuery(clause model.WhereClause, b Binding, query QueryFunc) ([]model.Fields, error) {
	filter := storage.Filter{}
	for field, varName := range clause.Bindings {
		if v, ok := b[varName]; ok {
			filter[field] = v
		}
	}
	rows, err := query(clause.Concept, clause.Relation, filter)
	if err != nil {
		return nil, errors.Wrapf(err, "where-query %s.%s", clause.Concept, clause.Relation)
	}
	return rows, nil
}

// ThenResult is one action invocation a sync fires, with Concept/Action/Input
// resolved from a ThenTemplate against a final binding. The caller (the
// engine) stamps ID/Flow/Timestamp/Sync/Parent.
type ThenResult struct {
	Concept string
	Action  string
	Input   model.Fields
}

// ExpandThen resolves every then-template against a fully satisfied binding.
func ExpandThen(templates []model.ThenTemplate, b Binding) ([]ThenResult, error) {
	out := make([]ThenResult, 0, len(templates))
	for _, t := range templates {
		input := make(model.Fields, len(t.Fields))
		for _, f := range t.Fields {
			v, ok, err := resolveThenField(f, b)
			if err != nil {
				return nil, errors.Wrapf(err, "then %s.%s field %q", t.Concept, t.Action, f.Name)
			}
			if !ok {
				return nil, errors.Errorf("then %s.%s: unbound field %q", t.Concept, t.Action, f.Name)
			}
			input[f.Name] = v
		}
		out = append(out, ThenResult{Concept: t.Concept, Action: t.Action, Input: input})
	}
	return out, nil
}

func resolveThenField(f model.ThenField, b Binding) (interface{}, bool, error) {
	if f.Template != "" {
		s, err := renderTemplate(f.Template, b)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	}
	v, ok := substitute(b, f.Kind, f.Value, f.Var)
	return v, ok, nil
}

// renderTemplate replaces every `${name}` placeholder in tmpl with the
// corresponding binding value's string form.
func renderTemplate(tmpl string, b Binding) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "${")
		if start < 0 {
			sb.WriteString(tmpl[i:])
			break
		}
		start += i
		sb.WriteString(tmpl[i:start])
		end := strings.Index(tmpl[start:], "}")
		if end < 0 {
			return "", errors.Errorf("unterminated placeholder in template %q", tmpl)
		}
		end += start
		name := tmpl[start+2 : end]
		v, ok := b[name]
		if !ok {
			return "", errors.Errorf("unbound template variable %q", name)
		}
		sb.WriteString(valueToString(v))
		i = end + 1
	}
	return sb.String(), nil
}

func valueToString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
