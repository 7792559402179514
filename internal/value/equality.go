package value

// Eq implements eq?: identity of heap-shared values, true for identical
// immutable atoms (spec §3, §8 invariant 2).
func Eq(a, b Value) bool {
	switch x := a.(type) {
	case Symbol:
		y, ok := b.(Symbol)
		return ok && SymbolEq(x, y)
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x.Value == y.Value
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Unspecified:
		_, ok := b.(Unspecified)
		return ok
	case Char:
		y, ok := b.(Char)
		return ok && x.Value == y.Value
	case Integer:
		// Small exact integers behave as immutable atoms; identity
		// comparison degrades to value comparison for them, matching
		// the common Scheme implementation choice noted in spec §3.
		y, ok := b.(Integer)
		return ok && x.Value.Cmp(y.Value) == 0
	default:
		return a == b // pointer types (*Pair, *Vector, ...) compare by identity
	}
}

// Eqv implements eqv?: as Eq except numbers compare by value within their
// exactness class (spec §3, §8 invariant 2: eqv? implies equal?).
func Eqv(a, b Value) bool {
	if IsNumber(a) && IsNumber(b) {
		return IsExact(a) == IsExact(b) && NumericEqual(a, b)
	}
	return Eq(a, b)
}

// Equal implements equal?: structural equality that terminates on cyclic
// pair/vector structure by tracking already-visited identity pairs
// (spec §8 invariant 1, §9 design note).
func Equal(a, b Value) bool {
	return equalRec(a, b, make(map[identPair]bool))
}

type identPair struct{ a, b any }

func equalRec(a, b Value, visited map[identPair]bool) bool {
	if Eqv(a, b) {
		return true
	}
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && x.Value == y.Value
	case *MutableString:
		y, ok := b.(*MutableString)
		return ok && string(x.Runes) == string(y.Runes)
	case *Bytevector:
		y, ok := b.(*Bytevector)
		if !ok || len(x.Bytes) != len(y.Bytes) {
			return false
		}
		for i := range x.Bytes {
			if x.Bytes[i] != y.Bytes[i] {
				return false
			}
		}
		return true
	case *Pair:
		return equalPair(x, x.Car, x.Cdr, b, visited)
	case *MutablePair:
		return equalPair(x, x.Car, x.Cdr, b, visited)
	case *Vector:
		y, ok := b.(*Vector)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		key := identPair{x, y}
		if visited[key] {
			return true
		}
		visited[key] = true
		for i := range x.Items {
			if !equalRec(x.Items[i], y.Items[i], visited) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalPair(identity any, car, cdr Value, b Value, visited map[identPair]bool) bool {
	bCar, bCdr, _, ok := carCdr(b)
	if !ok {
		return false
	}
	key := identPair{identity, b}
	if visited[key] {
		return true
	}
	visited[key] = true
	return equalRec(car, bCar, visited) && equalRec(cdr, bCdr, visited)
}
