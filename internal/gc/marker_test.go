package gc

import (
	"testing"

	"github.com/lambdust-scheme/lambdust/internal/value"
	"github.com/stretchr/testify/assert"
)

// registry is a minimal headerFor backing used only by these tests:
// a flat map from value.Value to its Header.
type registry map[value.Value]*Header

func (reg registry) lookup(v value.Value) (*Header, bool) {
	h, ok := reg[v]
	return h, ok
}

func TestMarkerMarksReachableObjectsOnly(t *testing.T) {
	tail := value.Cons(value.NewInteger(2), value.TheNil)
	head := value.Cons(value.NewInteger(1), tail)
	unreachable := value.Cons(value.NewInteger(99), value.TheNil)

	hHead := &Header{Value: head}
	hTail := &Header{Value: tail}
	hUnreachable := &Header{Value: unreachable}

	reg := registry{head: hHead, tail: hTail, unreachable: hUnreachable}
	m := NewMarker(reg.lookup)

	m.MarkFromRoots([]*Header{hHead})

	assert.True(t, m.IsMarked(hHead))
	assert.True(t, m.IsMarked(hTail))
	assert.False(t, m.IsMarked(hUnreachable))
	assert.True(t, m.IsComplete())
}

func TestMarkerTracesVectorElements(t *testing.T) {
	elem := value.NewInteger(42)
	vec := value.NewVector([]value.Value{elem})
	hVec := &Header{Value: vec}
	hElem := &Header{Value: elem}

	reg := registry{vec: hVec, elem: hElem}
	m := NewMarker(reg.lookup)
	m.MarkFromRoots([]*Header{hVec})

	assert.True(t, m.IsMarked(hElem))
}

func TestMarkerResetClearsState(t *testing.T) {
	v := value.NewInteger(1)
	h := &Header{Value: v}
	reg := registry{v: h}
	m := NewMarker(reg.lookup)
	m.MarkFromRoots([]*Header{h})
	assert.True(t, m.IsMarked(h))

	m.Reset()
	assert.False(t, m.IsMarked(h))
	assert.False(t, m.IsComplete())
}
