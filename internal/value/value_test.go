package value

import (
	"math/big"
	"testing"
	"time"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarCdr(t *testing.T) {
	p := Cons(NewInteger(1), NewInteger(2))
	car, err := Car(p)
	require.NoError(t, err)
	assert.Equal(t, NewInteger(1), car)
	cdr, err := Cdr(p)
	require.NoError(t, err)
	assert.Equal(t, NewInteger(2), cdr)
}

func TestCarOnNonPairIsTypeError(t *testing.T) {
	_, err := Car(TheNil)
	require.Error(t, err)
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, lerrors.TypeError, lerr.Kind)
}

func TestSetCarOnImmutablePairFails(t *testing.T) {
	p := Cons(NewInteger(1), NewInteger(2))
	err := SetCar(p, NewInteger(9))
	require.Error(t, err)
}

func TestSetCarOnMutablePairSucceeds(t *testing.T) {
	p := NewMutablePair(NewInteger(1), NewInteger(2))
	require.NoError(t, SetCar(p, NewInteger(10)))
	car, err := Car(p)
	require.NoError(t, err)
	assert.Equal(t, NewInteger(10), car)
}

func TestListLength(t *testing.T) {
	l := ListFromSlice([]Value{NewInteger(1), NewInteger(2), NewInteger(3)})
	n, err := ListLength(l)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListSliceRoundTrip(t *testing.T) {
	items := []Value{NewInteger(1), NewInteger(2), NewInteger(3)}
	l := ListFromSlice(items)
	slice, ok := ListToSlice(l)
	require.True(t, ok)
	assert.Equal(t, items, slice)
}

func TestVectorBoundsError(t *testing.T) {
	v := NewVector([]Value{NewInteger(1), NewInteger(2)})
	_, err := VectorRef(v, 2)
	require.Error(t, err)
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, lerrors.BoundsError, lerr.Kind)
}

func TestEqualityLaws(t *testing.T) {
	a := NewInteger(5)
	b := NewInteger(5)
	assert.True(t, Equal(a, a))
	assert.True(t, Eqv(a, b))
	assert.True(t, Eq(a, a) == Eqv(a, a))
}

func TestEqImpliesEqvImpliesEqual(t *testing.T) {
	p := Cons(NewInteger(1), NewInteger(2))
	assert.True(t, Eq(p, p))
	assert.True(t, Eqv(p, p))
	assert.True(t, Equal(p, p))
}

func TestEqualCyclicPairTerminates(t *testing.T) {
	p := NewMutablePair(NewInteger(1), TheNil)
	p.Cdr = p // cycle
	done := make(chan bool, 1)
	go func() { done <- Equal(p, p) }()
	select {
	case result := <-done:
		assert.True(t, result)
	case <-time.After(2 * time.Second):
		t.Fatal("Equal on cyclic pair did not terminate")
	}
}

func TestDivisionByExactZeroFails(t *testing.T) {
	_, err := Div(NewInteger(1), NewInteger(0))
	require.Error(t, err)
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, lerrors.ArithmeticError, lerr.Kind)
}

func TestDivisionByInexactZeroYieldsInfinity(t *testing.T) {
	r, err := Div(NewInteger(1), NewReal(0))
	require.NoError(t, err)
	assert.Equal(t, "+inf.0", r.String())
}

func TestExactExactDivisionYieldsExactRational(t *testing.T) {
	r, err := Div(NewInteger(1), NewInteger(3))
	require.NoError(t, err)
	assert.True(t, IsExact(r))
	rat, ok := r.(Rational)
	require.True(t, ok)
	assert.Equal(t, "1/3", rat.String())
}

func TestRationalRoundTrip(t *testing.T) {
	rat, err := NewRational(big.NewInt(4), big.NewInt(8))
	require.NoError(t, err)
	assert.Equal(t, "1/2", rat.String())
	reconstructed, err := Div(rat.Numerator(), rat.Denominator())
	require.NoError(t, err)
	assert.True(t, NumericEqual(rat, reconstructed))
}

func TestZeroDenominatorRejected(t *testing.T) {
	_, err := NewRational(big.NewInt(1), big.NewInt(0))
	require.Error(t, err)
}

func TestExactnessPromotion(t *testing.T) {
	sum, err := Add(NewInteger(1), NewReal(2.5))
	require.NoError(t, err)
	assert.False(t, IsExact(sum))

	exactSum, err := Add(NewInteger(1), NewInteger(2))
	require.NoError(t, err)
	assert.True(t, IsExact(exactSum))
}

func TestPowZeroZero(t *testing.T) {
	r, err := Pow(NewInteger(0), NewInteger(0))
	require.NoError(t, err)
	assert.Equal(t, "1", r.String())
}

func TestSymbolInterningIsO1Equal(t *testing.T) {
	a := Intern("foo")
	b := Intern("foo")
	assert.True(t, SymbolEq(a, b))
	c := Intern("bar")
	assert.False(t, SymbolEq(a, c))
}

func TestHashTableEqualKeyed(t *testing.T) {
	h := NewHashTable()
	key1 := ListFromSlice([]Value{NewInteger(1), NewInteger(2)})
	key2 := ListFromSlice([]Value{NewInteger(1), NewInteger(2)})
	h.Set(key1, String{Value: "found"})
	v, ok := h.Get(key2)
	require.True(t, ok)
	assert.Equal(t, String{Value: "found"}, v)
}

func TestPriorityQueueOrdering(t *testing.T) {
	less := func(a, b Value) bool {
		return a.(Integer).Value.Cmp(b.(Integer).Value) < 0
	}
	pq := NewPriorityQueue(less)
	pq.Push(NewInteger(5))
	pq.Push(NewInteger(1))
	pq.Push(NewInteger(3))

	first, ok := pq.Pop()
	require.True(t, ok)
	assert.Equal(t, "1", first.String())
	second, _ := pq.Pop()
	assert.Equal(t, "3", second.String())
}

func TestPromiseForcesOnce(t *testing.T) {
	calls := 0
	p := NewPromise(func() (Value, error) {
		calls++
		return NewInteger(42), nil
	})
	v1, err := p.Force()
	require.NoError(t, err)
	v2, err := p.Force()
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestCharSetContainsAfterMerge(t *testing.T) {
	cs := NewCharSet()
	cs.AddRange('a', 'f')
	cs.AddRange('g', 'z') // adjacent, should merge
	assert.True(t, cs.Contains('m'))
	assert.False(t, cs.Contains('A'))
}

func TestCharSetContainsFoldMatchesOtherCase(t *testing.T) {
	cs := NewCharSet()
	cs.AddRange('a', 'z')
	assert.False(t, cs.Contains('M'))
	assert.True(t, cs.ContainsFold('M'))
}

func TestCharFold(t *testing.T) {
	assert.Equal(t, Char{Value: 'm'}, Char{Value: 'M'}.Fold())
}

func TestNewStringNormalizesToNFC(t *testing.T) {
	// "e" + combining acute accent (U+0065 U+0301) composes to U+00E9 (é).
	decomposed := "é"
	got := NewString(decomposed)
	assert.Equal(t, "é", got.Value)
}

func TestStringFold(t *testing.T) {
	assert.Equal(t, NewString("hello"), String{Value: "HELLO"}.Fold())
}

func TestTruthiness(t *testing.T) {
	assert.True(t, IsTruthy(NewInteger(0)))
	assert.True(t, IsTruthy(TheNil))
	assert.False(t, IsTruthy(False))
	assert.True(t, IsTruthy(True))
}
