package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// evalExpr evaluates the small expression language used by WhereBind and
// WherePredicate clauses: `uuid()`, arithmetic/string
// builtins, and `?variable` substitution from the current binding.
//
// Grammar (deliberately small; a richer expression language is out of
// scope here):
//
//	expr       := call | variable | literal
//	call       := name "(" [ expr ("," expr)* ] ")"
//	variable   := "?" identifier
//	literal    := number | quoted-string | "true" | "false"
func evalExpr(expr string, binding Binding) (interface{}, error) {
	tokens, err := tokenizeExpr(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	v, err := p.parseExpr()
	if err != nil {
		return nil, errors.Wrapf(err, "could not evaluate expression %q", expr)
	}
	if !p.atEnd() {
		return nil, errors.Errorf("could not evaluate expression %q: trailing input", expr)
	}
	return v.resolve(binding)
}

// truthy mirrors the predicate-discard rule: zero values, empty strings,
// nil, and false are falsy; everything else is truthy.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// --- tokenizer ---

type exprToken struct {
	kind  tokenKind
	text  string
	value interface{} // populated for numbers/strings/bools
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokVariable
	tokNumber
	tokString
	tokBool
	tokLParen
	tokRParen
	tokComma
)

func tokenizeExpr(expr string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	n := len(expr)
	for i < n {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, exprToken{kind: tokLParen})
			i++
		case c == ')':
			tokens = append(tokens, exprToken{kind: tokRParen})
			i++
		case c == ',':
			tokens = append(tokens, exprToken{kind: tokComma})
			i++
		case c == '?':
			j := i + 1
			for j < n && isIdentByte(expr[j]) {
				j++
			}
			tokens = append(tokens, exprToken{kind: tokVariable, text: expr[i+1 : j]})
			i = j
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < n && expr[j] != '"' {
				sb.WriteByte(expr[j])
				j++
			}
			if j >= n {
				return nil, errors.New("unterminated string literal")
			}
			tokens = append(tokens, exprToken{kind: tokString, value: sb.String()})
			i = j + 1
		case c == '+' || c == '-':
			tokens = append(tokens, exprToken{kind: tokIdent, text: string(c)})
			i++
		case isDigit(c):
			j := i
			for j < n && (isDigit(expr[j]) || expr[j] == '.') {
				j++
			}
			f, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid number %q", expr[i:j])
			}
			tokens = append(tokens, exprToken{kind: tokNumber, value: f})
			i = j
		case isIdentByte(c):
			j := i
			for j < n && isIdentByte(expr[j]) {
				j++
			}
			word := expr[i:j]
			switch word {
			case "true":
				tokens = append(tokens, exprToken{kind: tokBool, value: true})
			case "false":
				tokens = append(tokens, exprToken{kind: tokBool, value: false})
			default:
				tokens = append(tokens, exprToken{kind: tokIdent, text: word})
			}
			i = j
		default:
			return nil, errors.Errorf("unexpected character %q", c)
		}
	}
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c)
}

// --- parser: builds a tiny AST of exprNode, deferring variable resolution
// to evaluation time so the same parsed expression could in principle be
// reused across bindings (not currently cached, but the shape allows it). ---

type exprNode interface {
	resolve(b Binding) (interface{}, error)
}

type litNode struct{ value interface{} }

func (n litNode) resolve(Binding) (interface{}, error) { return n.value, nil }

type varNode struct{ name string }

func (n varNode) resolve(b Binding) (interface{}, error) {
	v, ok := b[n.name]
	if !ok {
		return nil, errors.Errorf("unbound variable %q", n.name)
	}
	return v, nil
}

type callNode struct {
	name string
	args []exprNode
}

func (n callNode) resolve(b Binding) (interface{}, error) {
	args := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.resolve(b)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return callBuiltin(n.name, args)
}

type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *exprParser) peek() (exprToken, bool) {
	if p.atEnd() {
		return exprToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) next() (exprToken, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *exprParser) parseExpr() (exprNode, error) {
	t, ok := p.next()
	if !ok {
		return nil, errors.New("unexpected end of expression")
	}
	switch t.kind {
	case tokNumber, tokString, tokBool:
		return litNode{value: t.value}, nil
	case tokVariable:
		return varNode{name: t.text}, nil
	case tokIdent:
		if next, ok := p.peek(); !ok || next.kind != tokLParen {
			return nil, errors.Errorf("expected '(' after function name %q", t.text)
		}
		p.pos++ // consume '('
		var args []exprNode
		if next, ok := p.peek(); ok && next.kind != tokRParen {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				sep, ok := p.next()
				if !ok {
					return nil, errors.New("unterminated argument list")
				}
				if sep.kind == tokRParen {
					return callNode{name: t.text, args: args}, nil
				}
				if sep.kind != tokComma {
					return nil, errors.New("expected ',' or ')' in argument list")
				}
			}
		}
		if _, ok := p.next(); !ok {
			return nil, errors.New("unterminated argument list")
		}
		return callNode{name: t.text, args: args}, nil
	default:
		return nil, errors.Errorf("unexpected token %v", t)
	}
}

// callBuiltin implements the small stdlib of builtins the sync language
// offers: uuid(), arithmetic, string, and comparison helpers.
func callBuiltin(name string, args []interface{}) (interface{}, error) {
	switch name {
	case "uuid":
		return uuid.New().String(), nil
	case "now":
		return time.Now().Format(time.RFC3339Nano), nil
	case "concat":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(fmt.Sprint(a))
		}
		return sb.String(), nil
	case "len":
		if len(args) != 1 {
			return nil, errors.New("len() takes exactly one argument")
		}
		switch v := args[0].(type) {
		case string:
			return float64(len(v)), nil
		case []interface{}:
			return float64(len(v)), nil
		default:
			return nil, errors.Errorf("len() unsupported for %T", v)
		}
	case "+":
		return numericFold(args, func(a, b float64) float64 { return a + b })
	case "-":
		return numericFold(args, func(a, b float64) float64 { return a - b })
	case "eq":
		if len(args) != 2 {
			return nil, errors.New("eq() takes exactly two arguments")
		}
		return fmt.Sprint(args[0]) == fmt.Sprint(args[1]), nil
	case "lt":
		return numericCompare(args, func(a, b float64) bool { return a < b })
	case "gt":
		return numericCompare(args, func(a, b float64) bool { return a > b })
	case "object":
		if len(args)%2 != 0 {
			return nil, errors.New("object() requires an even number of arguments")
		}
		obj := make(map[string]interface{}, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			key, ok := args[i].(string)
			if !ok {
				return nil, errors.New("object() keys must be strings")
			}
			obj[key] = args[i+1]
		}
		return obj, nil
	default:
		return nil, errors.Errorf("unknown builtin %q", name)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	default:
		return 0, errors.Errorf("expected a number, got %T", v)
	}
}

func numericFold(args []interface{}, op func(a, b float64) float64) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("arithmetic builtin requires at least one argument")
	}
	acc, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		f, err := toFloat(a)
		if err != nil {
			return nil, err
		}
		acc = op(acc, f)
	}
	return acc, nil
}

func numericCompare(args []interface{}, op func(a, b float64) bool) (interface{}, error) {
	if len(args) != 2 {
		return nil, errors.New("comparison builtin takes exactly two arguments")
	}
	a, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	return op(a, b), nil
}
