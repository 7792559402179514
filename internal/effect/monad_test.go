package effect

import (
	"errors"
	"testing"

	"github.com/lambdust-scheme/lambdust/internal/environment"
	"github.com/lambdust-scheme/lambdust/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIO struct {
	written []string
	lines   []string
}

func (f *fakeIO) Display(s string) error {
	f.written = append(f.written, s)
	return nil
}

func (f *fakeIO) ReadLine() (string, bool, error) {
	if len(f.lines) == 0 {
		return "", false, nil
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true, nil
}

func TestRunIOExecutesAction(t *testing.T) {
	io := &fakeIO{}
	m := NewIO(func(c IOContext) (value.Value, error) {
		return value.TheUnspecified, c.Display("hello")
	})
	v, err := Run(m, io, nil)
	require.NoError(t, err)
	assert.Equal(t, value.TheUnspecified, v)
	assert.Equal(t, []string{"hello"}, io.written)
}

func TestRunStateThreadsEnvironment(t *testing.T) {
	env := environment.New()
	env.Define("counter", value.NewInteger(1))
	m := NewState(func(e *environment.Environment) (value.Value, error) {
		v, _ := e.Lookup("counter")
		return v, nil
	})
	v, err := Run(m, nil, env)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(1), v)
}

func TestRunMaybeNothingCollapsesToEmptyList(t *testing.T) {
	v, err := Run(Nothing(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.TheNil, v)
	assert.True(t, Nothing().IsNothing())
}

func TestRunMaybeJustUnwraps(t *testing.T) {
	v, err := Run(Just(value.NewInteger(7)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(7), v)
}

func TestRunEitherLeftPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := Run(Left(sentinel), nil, nil)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, Left(sentinel).IsLeft())
}

func TestRunEitherRightUnwraps(t *testing.T) {
	v, err := Run(Right(value.NewInteger(3)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(3), v)
}

func TestBindSequencesIOActions(t *testing.T) {
	io := &fakeIO{}
	first := NewIO(func(c IOContext) (value.Value, error) {
		return value.NewInteger(1), c.Display("first")
	})
	combined := Bind(first, func(v value.Value) (*Monadic, error) {
		return NewIO(func(c IOContext) (value.Value, error) {
			return value.NewInteger(2), c.Display("second")
		}), nil
	})
	v, err := Run(combined, io, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(2), v)
	assert.Equal(t, []string{"first", "second"}, io.written)
}

func TestBindShortCircuitsOnNothing(t *testing.T) {
	called := false
	combined := Bind(Nothing(), func(value.Value) (*Monadic, error) {
		called = true
		return Just(value.NewInteger(1)), nil
	})
	assert.False(t, called)
	v, err := Run(combined, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.TheNil, v)
}

func TestBindShortCircuitsOnLeft(t *testing.T) {
	sentinel := errors.New("boom")
	called := false
	combined := Bind(Left(sentinel), func(value.Value) (*Monadic, error) {
		called = true
		return Right(value.NewInteger(1)), nil
	})
	assert.False(t, called)
	_, err := Run(combined, nil, nil)
	assert.ErrorIs(t, err, sentinel)
}

func TestMapTransformsResultWithoutChangingMonad(t *testing.T) {
	doubled := Map(Just(value.NewInteger(5)), func(v value.Value) value.Value {
		n := v.(value.Integer).Value.Int64()
		return value.NewInteger(n * 2)
	})
	v, err := Run(doubled, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "10", v.(value.Integer).Value.String())
}

func TestThenDiscardsFirstResult(t *testing.T) {
	io := &fakeIO{}
	first := NewIO(func(c IOContext) (value.Value, error) { return value.NewInteger(1), c.Display("a") })
	second := NewIO(func(c IOContext) (value.Value, error) { return value.NewInteger(2), c.Display("b") })
	v, err := Run(Then(first, second), io, nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(2), v)
	assert.Equal(t, []string{"a", "b"}, io.written)
}
