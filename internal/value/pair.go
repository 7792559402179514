package value

import (
	"strings"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// Pair is an immutable cons cell. set-car!/set-cdr! on an immutable Pair
// fails with a type-error; only MutablePair is a legal mutation target
// (spec §3 invariant).
type Pair struct {
	Car, Cdr Value
}

func Cons(a, b Value) *Pair { return &Pair{Car: a, Cdr: b} }

func (p *Pair) TypeName() string { return "pair" }
func (p *Pair) String() string   { return writeList(p) }

// MutablePair is the sole mutable pair variant: the only legal target of
// set-car!/set-cdr! (spec §3).
type MutablePair struct {
	Car, Cdr Value
}

func NewMutablePair(a, b Value) *MutablePair { return &MutablePair{Car: a, Cdr: b} }

func (p *MutablePair) TypeName() string { return "mutable-pair" }
func (p *MutablePair) String() string   { return writeList(p) }

// carCdr abstracts over Pair/MutablePair for Car/Cdr/SetCar!/SetCdr!.
func carCdr(v Value) (car, cdr Value, mutable bool, ok bool) {
	switch p := v.(type) {
	case *Pair:
		return p.Car, p.Cdr, false, true
	case *MutablePair:
		return p.Car, p.Cdr, true, true
	default:
		return nil, nil, false, false
	}
}

// Car returns the car of a pair, failing with type-error on non-pairs
// (spec §4.1).
func Car(v Value) (Value, error) {
	car, _, _, ok := carCdr(v)
	if !ok {
		return nil, lerrors.Newf(lerrors.TypeError, "car: expected pair, got %s", v.TypeName())
	}
	return car, nil
}

// Cdr returns the cdr of a pair, failing with type-error on non-pairs.
func Cdr(v Value) (Value, error) {
	_, cdr, _, ok := carCdr(v)
	if !ok {
		return nil, lerrors.Newf(lerrors.TypeError, "cdr: expected pair, got %s", v.TypeName())
	}
	return cdr, nil
}

// SetCar mutates a MutablePair's car, failing with type-error on an
// immutable Pair or any other type.
func SetCar(v Value, newCar Value) error {
	p, ok := v.(*MutablePair)
	if !ok {
		return lerrors.Newf(lerrors.TypeError, "set-car!: expected mutable-pair, got %s", v.TypeName())
	}
	p.Car = newCar
	return nil
}

// SetCdr mutates a MutablePair's cdr, failing with type-error otherwise.
func SetCdr(v Value, newCdr Value) error {
	p, ok := v.(*MutablePair)
	if !ok {
		return lerrors.Newf(lerrors.TypeError, "set-cdr!: expected mutable-pair, got %s", v.TypeName())
	}
	p.Cdr = newCdr
	return nil
}

// ListFromSlice builds a proper immutable list from vs.
func ListFromSlice(vs []Value) Value {
	var result Value = TheNil
	for i := len(vs) - 1; i >= 0; i-- {
		result = Cons(vs[i], result)
	}
	return result
}

// ListToSlice flattens a proper list into a slice. ok is false if v is not
// a proper (nil-terminated, acyclic) list.
func ListToSlice(v Value) (result []Value, ok bool) {
	seen := make(map[any]bool)
	for {
		switch t := v.(type) {
		case Nil:
			return result, true
		case *Pair:
			if seen[t] {
				return nil, false
			}
			seen[t] = true
			result = append(result, t.Car)
			v = t.Cdr
		case *MutablePair:
			if seen[t] {
				return nil, false
			}
			seen[t] = true
			result = append(result, t.Car)
			v = t.Cdr
		default:
			return nil, false
		}
	}
}

// ListLength returns the length of a proper list, failing with type-error
// otherwise (spec §8 universal invariant 4).
func ListLength(v Value) (int, error) {
	s, ok := ListToSlice(v)
	if !ok {
		return 0, lerrors.New(lerrors.TypeError, "length: expected a proper list")
	}
	return len(s), nil
}

func writeList(v Value) string {
	var sb strings.Builder
	sb.WriteByte('(')
	first := true
	for {
		car, cdr, _, ok := carCdr(v)
		if !ok {
			break
		}
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(car.String())
		v = cdr
		if _, isNil := v.(Nil); isNil {
			v = nil
			break
		}
		if _, _, _, isPair := carCdr(v); !isPair {
			sb.WriteString(" . ")
			sb.WriteString(v.String())
			v = nil
			break
		}
	}
	sb.WriteByte(')')
	return sb.String()
}
