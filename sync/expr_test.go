package sync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalExprLiterals(t *testing.T) {
	v, err := evalExpr(`"hello"`, Binding{})
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	v, err = evalExpr("42", Binding{})
	require.NoError(t, err)
	require.Equal(t, float64(42), v)
}

func TestEvalExprVariable(t *testing.T) {
	v, err := evalExpr("?name", Binding{"name": "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", v)

	_, err = evalExpr("?missing", Binding{})
	require.Error(t, err)
}

func TestEvalExprBuiltins(t *testing.T) {
	v, err := evalExpr(`concat("a", "b", ?x)`, Binding{"x": "c"})
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	v, err = evalExpr("+(1, 2, 3)", Binding{})
	require.NoError(t, err)
	require.Equal(t, float64(6), v)

	v, err = evalExpr("lt(1, 2)", Binding{})
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = evalExpr(`eq(?a, "x")`, Binding{"a": "x"})
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestEvalExprObject(t *testing.T) {
	v, err := evalExpr(`object("echo", ?text)`, Binding{"text": "hi"})
	require.NoError(t, err)
	obj, ok := v.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "hi", obj["echo"])
}

func TestEvalExprUUID(t *testing.T) {
	v, err := evalExpr("uuid()", Binding{})
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	require.Len(t, s, 36)
}

func TestTruthy(t *testing.T) {
	require.True(t, truthy(true))
	require.True(t, truthy("x"))
	require.True(t, truthy(float64(1)))
	require.False(t, truthy(false))
	require.False(t, truthy(""))
	require.False(t, truthy(float64(0)))
	require.False(t, truthy(nil))
}
