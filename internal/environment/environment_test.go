package environment

import (
	"sync"
	"testing"

	"github.com/lambdust-scheme/lambdust/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineAndLookup(t *testing.T) {
	env := New()
	env.Define("x", value.NewInteger(42))
	v, ok := env.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, value.NewInteger(42), v)
}

func TestLookupWalksParentChain(t *testing.T) {
	outer := New()
	outer.Define("x", value.NewInteger(1))
	inner := NewEnclosed(outer)
	v, ok := inner.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, value.NewInteger(1), v)
}

func TestExtendDoesNotMutateParent(t *testing.T) {
	outer := New()
	child := outer.Extend(map[string]value.Value{"y": value.NewInteger(2)})
	_, ok := outer.Lookup("y")
	assert.False(t, ok, "Extend must not mutate the parent scope")
	v, ok := child.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, value.NewInteger(2), v)
}

func TestSetFindsNearestBinding(t *testing.T) {
	outer := New()
	outer.Define("x", value.NewInteger(1))
	inner := NewEnclosed(outer)
	require.NoError(t, inner.Set("x", value.NewInteger(99)))

	v, _ := outer.Lookup("x")
	assert.Equal(t, value.NewInteger(99), v, "set! on an unshadowed variable must reach the defining scope")
}

func TestSetOnUnboundFails(t *testing.T) {
	env := New()
	err := env.Set("nope", value.NewInteger(1))
	require.Error(t, err)
}

func TestGenerationIncrementsOnMutation(t *testing.T) {
	env := New()
	g0 := env.Generation()
	env.Define("x", value.NewInteger(1))
	g1 := env.Generation()
	assert.Greater(t, g1, g0)
	require.NoError(t, env.Set("x", value.NewInteger(2)))
	assert.Greater(t, env.Generation(), g1)
}

func TestConcurrentReadersDoNotRace(t *testing.T) {
	env := New()
	env.Define("x", value.NewInteger(1))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.Lookup("x")
		}()
	}
	wg.Wait()
}

func TestRootEnvironmentHasNoOuter(t *testing.T) {
	env := New()
	assert.Nil(t, env.Outer())
}
