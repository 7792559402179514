package primitive

import (
	"testing"

	"github.com/lambdust-scheme/lambdust/internal/environment"
	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/eval"
	"github.com/lambdust-scheme/lambdust/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) *environment.Environment {
	t.Helper()
	env := environment.New()
	RegisterCore(env)
	return env
}

func lookup(t *testing.T, env *environment.Environment, name string) *value.Primitive {
	t.Helper()
	v, ok := env.Lookup(name)
	require.True(t, ok, "expected %q to be defined", name)
	p, ok := v.(*value.Primitive)
	require.True(t, ok, "%q is not a primitive", name)
	return p
}

func TestArithmeticPrimitivesFoldLeftToRight(t *testing.T) {
	env := newEnv(t)

	v, err := lookup(t, env, "+").Impl([]value.Value{value.NewInteger(1), value.NewInteger(2), value.NewInteger(3)})
	require.NoError(t, err)
	assert.Equal(t, "6", v.(value.Integer).Value.String())

	v, err = lookup(t, env, "*").Impl([]value.Value{value.NewInteger(2), value.NewInteger(3), value.NewInteger(4)})
	require.NoError(t, err)
	assert.Equal(t, "24", v.(value.Integer).Value.String())

	v, err = lookup(t, env, "-").Impl([]value.Value{value.NewInteger(10), value.NewInteger(3)})
	require.NoError(t, err)
	assert.Equal(t, "7", v.(value.Integer).Value.String())
}

func TestUnaryMinusNegates(t *testing.T) {
	env := newEnv(t)
	v, err := lookup(t, env, "-").Impl([]value.Value{value.NewInteger(5)})
	require.NoError(t, err)
	assert.Equal(t, "-5", v.(value.Integer).Value.String())
}

func TestUnaryDivideReciprocates(t *testing.T) {
	env := newEnv(t)
	v, err := lookup(t, env, "/").Impl([]value.Value{value.NewInteger(4)})
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestNumericEqualityChain(t *testing.T) {
	env := newEnv(t)
	v, err := lookup(t, env, "=").Impl([]value.Value{value.NewInteger(2), value.NewInteger(2), value.NewInteger(2)})
	require.NoError(t, err)
	assert.Equal(t, value.True, v)

	v, err = lookup(t, env, "=").Impl([]value.Value{value.NewInteger(2), value.NewInteger(3)})
	require.NoError(t, err)
	assert.Equal(t, value.False, v)
}

func TestConsCarCdr(t *testing.T) {
	env := newEnv(t)
	pair, err := lookup(t, env, "cons").Impl([]value.Value{value.NewInteger(1), value.NewInteger(2)})
	require.NoError(t, err)

	car, err := lookup(t, env, "car").Impl([]value.Value{pair})
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(1), car)

	cdr, err := lookup(t, env, "cdr").Impl([]value.Value{pair})
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(2), cdr)
}

func TestListAndLength(t *testing.T) {
	env := newEnv(t)
	lst, err := lookup(t, env, "list").Impl([]value.Value{value.NewInteger(1), value.NewInteger(2), value.NewInteger(3)})
	require.NoError(t, err)

	n, err := lookup(t, env, "length").Impl([]value.Value{lst})
	require.NoError(t, err)
	assert.Equal(t, "3", n.(value.Integer).Value.String())
}

func TestSetCarAndSetCdrMutateInPlace(t *testing.T) {
	env := newEnv(t)
	pair := value.NewMutablePair(value.NewInteger(1), value.NewInteger(2))

	_, err := lookup(t, env, "set-car!").Impl([]value.Value{pair, value.NewInteger(9)})
	require.NoError(t, err)
	car, err := value.Car(pair)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(9), car)

	_, err = lookup(t, env, "set-cdr!").Impl([]value.Value{pair, value.NewInteger(8)})
	require.NoError(t, err)
	cdr, err := value.Cdr(pair)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(8), cdr)
}

func TestPredicates(t *testing.T) {
	env := newEnv(t)

	eq, err := lookup(t, env, "eq?").Impl([]value.Value{value.TheNil, value.TheNil})
	require.NoError(t, err)
	assert.Equal(t, value.True, eq)

	isNull, err := lookup(t, env, "null?").Impl([]value.Value{value.TheNil})
	require.NoError(t, err)
	assert.Equal(t, value.True, isNull)

	isPair, err := lookup(t, env, "pair?").Impl([]value.Value{value.Cons(value.NewInteger(1), value.TheNil)})
	require.NoError(t, err)
	assert.Equal(t, value.True, isPair)

	isProc, err := lookup(t, env, "procedure?").Impl([]value.Value{lookup(t, env, "car")})
	require.NoError(t, err)
	assert.Equal(t, value.True, isProc)

	notTrue, err := lookup(t, env, "not").Impl([]value.Value{value.False})
	require.NoError(t, err)
	assert.Equal(t, value.True, notTrue)
}

func TestDynamicWindPrimitiveIsNotDirectlyCallable(t *testing.T) {
	env := newEnv(t)
	p := lookup(t, env, eval.DynamicWindName)
	assert.Equal(t, 3, p.MinArity)
	assert.Equal(t, 3, p.MaxArity)

	_, err := p.Impl(nil)
	require.Error(t, err)
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, lerrors.Fatal, lerr.Kind)
}

func TestDisplayRendersStringsUnquoted(t *testing.T) {
	assert.Equal(t, "hello", Display(value.String{Value: "hello"}))
	assert.Equal(t, "5", Display(value.NewInteger(5)))
}
