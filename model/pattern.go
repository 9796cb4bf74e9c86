package model

// MatchKind discriminates the three ways a field pattern can match.
type MatchKind int

const (
	// MatchLiteral requires the field to equal a fixed value.
	MatchLiteral MatchKind = iota
	// MatchVariable binds the field's value to a named variable.
	MatchVariable
	// MatchWildcard matches any value without binding it.
	MatchWildcard
)

// FieldMatch is one field pattern within a WhenPattern or ThenTemplate.
type FieldMatch struct {
	Name  string
	Kind  MatchKind
	Value interface{} // literal value, valid when Kind == MatchLiteral
	Var   string      // variable name, valid when Kind == MatchVariable
}

// Literal builds a literal field match.
func Literal(name string, value interface{}) FieldMatch {
	return FieldMatch{Name: name, Kind: MatchLiteral, Value: value}
}

// Variable builds a variable-binding field match.
func Variable(name, varName string) FieldMatch {
	return FieldMatch{Name: name, Kind: MatchVariable, Var: varName}
}

// Wildcard builds a wildcard field match.
func Wildcard(name string) FieldMatch {
	return FieldMatch{Name: name, Kind: MatchWildcard}
}

// WhenPattern is one clause of a sync's `when` clause: it must match a
// completion on the named concept/action, binding input and output fields.
type WhenPattern struct {
	Concept      string
	Action       string
	InputFields  []FieldMatch
	OutputFields []FieldMatch
}

// WhereKind discriminates the three where-clause forms.
type WhereKind int

const (
	WhereBind WhereKind = iota
	WhereQuery
	WherePredicate
)

// WhereClause is one clause of a sync's `where` clause, evaluated in order
// against the binding accumulated so far.
type WhereClause struct {
	Kind WhereKind

	// WhereBind: Expr is evaluated and bound to As.
	Expr string
	As   string

	// WhereQuery: Concept is queried via the lite-query adapter; Bindings
	// maps relation field names to variables already bound (used as the
	// query filter) or to fresh variable names (bound from result rows).
	Concept  string
	Relation string
	Bindings map[string]string

	// WherePredicate: Expr must be truthy or the binding is discarded.
}

// ThenField is one output field of a ThenTemplate, populated by substituting
// variables (or a template string containing `${var}` placeholders) from the
// binding.
type ThenField struct {
	Name     string
	Kind     MatchKind // MatchLiteral or MatchVariable; ignored when Template is set
	Value    interface{}
	Var      string
	Template string // when non-empty, rendered from the binding and used instead of Kind
}

// ThenTemplate is one action invocation a sync fires when all when/where
// clauses are satisfied.
type ThenTemplate struct {
	Concept string
	Action  string
	Fields  []ThenField
}

// Annotation tags a sync with distributed-firing semantics.
type Annotation string

const (
	AnnotationEager      Annotation = "eager"
	AnnotationEventual   Annotation = "eventual"
	AnnotationLocal      Annotation = "local"
	AnnotationIdempotent Annotation = "idempotent"
)

// CompiledSync is a fully parsed, ready-to-match sync rule. The parser that
// produces these from `.sync` source is out of the core's scope;
// the core only consumes already-compiled values.
type CompiledSync struct {
	Name        string
	Annotations map[Annotation]struct{}
	When        []WhenPattern
	Where       []WhereClause
	Then        []ThenTemplate
}

// Has reports whether the sync carries the given annotation.
func (s CompiledSync) Has(a Annotation) bool {
	_, ok := s.Annotations[a]
	return ok
}

// TargetConcepts returns the distinct concepts referenced by the sync's
// `then` templates, used to compute availability/degradation.
func (s CompiledSync) TargetConcepts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range s.Then {
		if _, ok := seen[t.Concept]; ok {
			continue
		}
		seen[t.Concept] = struct{}{}
		out = append(out, t.Concept)
	}
	return out
}
