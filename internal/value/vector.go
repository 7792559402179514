package value

import (
	"strings"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// Vector is a mutable, fixed-length array of Value. R7RS vectors are
// mutable by default (unlike strings/pairs, which have separate immutable
// and mutable variants).
type Vector struct{ Items []Value }

func NewVector(items []Value) *Vector { return &Vector{Items: items} }

func (v *Vector) TypeName() string { return "vector" }
func (v *Vector) String() string {
	parts := make([]string, len(v.Items))
	for i, it := range v.Items {
		parts[i] = it.String()
	}
	return "#(" + strings.Join(parts, " ") + ")"
}

// VectorRef indexes v, failing with bounds-error when i is out of range
// (spec §4.1: 0 <= i < length) or type-error when v is not a vector.
func VectorRef(v Value, i int) (Value, error) {
	vec, ok := v.(*Vector)
	if !ok {
		return nil, lerrors.Newf(lerrors.TypeError, "vector-ref: expected vector, got %s", v.TypeName())
	}
	if i < 0 || i >= len(vec.Items) {
		return nil, lerrors.Newf(lerrors.BoundsError, "vector-ref: index %d out of range [0, %d)", i, len(vec.Items))
	}
	return vec.Items[i], nil
}

// VectorSet mutates the element at i, with the same bounds/type checks as
// VectorRef.
func VectorSet(v Value, i int, newVal Value) error {
	vec, ok := v.(*Vector)
	if !ok {
		return lerrors.Newf(lerrors.TypeError, "vector-set!: expected vector, got %s", v.TypeName())
	}
	if i < 0 || i >= len(vec.Items) {
		return lerrors.Newf(lerrors.BoundsError, "vector-set!: index %d out of range [0, %d)", i, len(vec.Items))
	}
	vec.Items[i] = newVal
	return nil
}
