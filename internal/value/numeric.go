package value

import (
	"fmt"
	"math"
	"math/big"

	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// Integer is an arbitrary-precision exact integer.
type Integer struct{ Value *big.Int }

func NewInteger(i int64) Integer       { return Integer{Value: big.NewInt(i)} }
func NewIntegerFromBig(b *big.Int) Integer { return Integer{Value: new(big.Int).Set(b)} }

func (i Integer) TypeName() string { return "integer" }
func (i Integer) String() string   { return i.Value.String() }

// Rational is an exact a/b in lowest terms with a positive denominator
// (spec §3 invariant; big.Rat already normalizes this way).
type Rational struct{ Value *big.Rat }

// NewRational constructs a reduced exact rational. Passing a zero
// denominator is a constructor-rejected condition (spec §3): it returns an
// *errors.Error instead of a Rational.
func NewRational(num, den *big.Int) (Rational, error) {
	if den.Sign() == 0 {
		return Rational{}, lerrors.New(lerrors.ArithmeticError, "zero denominator in rational constructor")
	}
	return Rational{Value: new(big.Rat).SetFrac(num, den)}, nil
}

func (r Rational) TypeName() string { return "rational" }
func (r Rational) String() string   { return r.Value.RatString() }

// Numerator and Denominator expose the reduced components (spec §8
// round-trip law: (/ (numerator r) (denominator r)) = r).
func (r Rational) Numerator() Integer   { return Integer{Value: new(big.Int).Set(r.Value.Num())} }
func (r Rational) Denominator() Integer { return Integer{Value: new(big.Int).Set(r.Value.Denom())} }

// Real is an inexact IEEE-754 double.
type Real struct{ Value float64 }

func NewReal(f float64) Real { return Real{Value: f} }

func (r Real) TypeName() string { return "real" }
func (r Real) String() string {
	if math.IsInf(r.Value, 1) {
		return "+inf.0"
	}
	if math.IsInf(r.Value, -1) {
		return "-inf.0"
	}
	if math.IsNaN(r.Value) {
		return "+nan.0"
	}
	return formatFloat(r.Value)
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'n' || r == 'i' {
			return s
		}
	}
	return s + "."
}

// Complex is a+bi with real/imaginary parts carrying their own exactness.
type Complex struct {
	Real, Imag Value // each an Integer, Rational, or Real
}

func (c Complex) TypeName() string { return "complex" }
func (c Complex) String() string {
	imagStr := c.Imag.String()
	if len(imagStr) > 0 && imagStr[0] != '-' && imagStr[0] != '+' {
		imagStr = "+" + imagStr
	}
	return c.Real.String() + imagStr + "i"
}

// IsExact reports whether v is an exact numeric value (integer or rational,
// or a complex whose parts are both exact).
func IsExact(v Value) bool {
	switch t := v.(type) {
	case Integer, Rational:
		return true
	case Complex:
		return IsExact(t.Real) && IsExact(t.Imag)
	default:
		return false
	}
}

// IsNumber reports whether v is any member of the numeric tower.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Integer, Rational, Real, Complex:
		return true
	default:
		return false
	}
}

// numericRank orders the promotion chain of spec §4.1:
// integer(0) -> rational(1) -> real(2) -> complex(3).
func numericRank(v Value) int {
	switch v.(type) {
	case Integer:
		return 0
	case Rational:
		return 1
	case Real:
		return 2
	case Complex:
		return 3
	default:
		return -1
	}
}

func toFloat(v Value) float64 {
	switch t := v.(type) {
	case Integer:
		f := new(big.Float).SetInt(t.Value)
		r, _ := f.Float64()
		return r
	case Rational:
		r, _ := t.Value.Float64()
		return r
	case Real:
		return t.Value
	default:
		return math.NaN()
	}
}

func toRat(v Value) *big.Rat {
	switch t := v.(type) {
	case Integer:
		return new(big.Rat).SetInt(t.Value)
	case Rational:
		return new(big.Rat).Set(t.Value)
	default:
		return nil
	}
}

// isComplex reports whether either operand is a Complex. No constructor
// for Complex is exposed yet (spec §3 lists it in the tower, but no
// primitive builds one), so Add/Sub/Mul/Div/NumericEqual reject it
// explicitly here rather than letting toRat's nil fall through into a
// nil-pointer panic the moment one is introduced.
func isComplex(a, b Value) bool {
	_, ac := a.(Complex)
	_, bc := b.(Complex)
	return ac || bc
}

// Add implements numeric addition with the promotion and exactness rules
// of spec §4.1: any exact+inexact mix yields inexact; exact+exact yields
// exact (rationals auto-reduce via big.Rat).
func Add(a, b Value) (Value, error) {
	return arith(a, b, func(x, y *big.Rat) *big.Rat { return new(big.Rat).Add(x, y) },
		func(x, y float64) float64 { return x + y }, "+")
}

func Sub(a, b Value) (Value, error) {
	return arith(a, b, func(x, y *big.Rat) *big.Rat { return new(big.Rat).Sub(x, y) },
		func(x, y float64) float64 { return x - y }, "-")
}

func Mul(a, b Value) (Value, error) {
	return arith(a, b, func(x, y *big.Rat) *big.Rat { return new(big.Rat).Mul(x, y) },
		func(x, y float64) float64 { return x * y }, "*")
}

// Div implements division per spec §4.1: exact/exact yields an exact
// rational unless the divisor is exact zero (arithmetic-error); any
// inexact operand yields inexact, and inexact division by zero yields the
// IEEE-754 infinity/NaN the hardware produces.
func Div(a, b Value) (Value, error) {
	if !IsNumber(a) || !IsNumber(b) {
		return nil, lerrors.New(lerrors.TypeError, "/ expects numbers")
	}
	if isComplex(a, b) {
		return nil, lerrors.New(lerrors.TypeError, "/: complex arithmetic is not implemented")
	}
	if IsExact(a) && IsExact(b) {
		bx := toRat(b)
		if bx.Sign() == 0 {
			return nil, lerrors.New(lerrors.ArithmeticError, "division by exact zero")
		}
		result := new(big.Rat).Quo(toRat(a), bx)
		return ratToValue(result), nil
	}
	x, y := toFloat(a), toFloat(b)
	return Real{Value: x / y}, nil
}

func arith(a, b Value, ratOp func(x, y *big.Rat) *big.Rat, floatOp func(x, y float64) float64, name string) (Value, error) {
	if !IsNumber(a) || !IsNumber(b) {
		return nil, lerrors.Newf(lerrors.TypeError, "%s expects numbers", name)
	}
	if isComplex(a, b) {
		return nil, lerrors.Newf(lerrors.TypeError, "%s: complex arithmetic is not implemented", name)
	}
	if IsExact(a) && IsExact(b) {
		return ratToValue(ratOp(toRat(a), toRat(b))), nil
	}
	return Real{Value: floatOp(toFloat(a), toFloat(b))}, nil
}

func ratToValue(r *big.Rat) Value {
	if r.IsInt() {
		return Integer{Value: new(big.Int).Set(r.Num())}
	}
	return Rational{Value: r}
}

// Pow implements 0^0 = 1 (spec §4.1) and otherwise promotes through float
// exponentiation for simplicity; exact integer powers with non-negative
// exact integer exponents stay exact.
func Pow(base, exp Value) (Value, error) {
	if bi, ok := base.(Integer); ok {
		if ei, ok := exp.(Integer); ok && ei.Value.Sign() >= 0 && ei.Value.IsInt64() {
			if bi.Value.Sign() == 0 && ei.Value.Sign() == 0 {
				return NewInteger(1), nil
			}
			return Integer{Value: new(big.Int).Exp(bi.Value, ei.Value, nil)}, nil
		}
	}
	b, e := toFloat(base), toFloat(exp)
	if b == 0 && e == 0 {
		return NewInteger(1), nil
	}
	return Real{Value: math.Pow(b, e)}, nil
}

// NumericEqual compares two numbers by value within/across exactness
// classes, used by Eqv/Equal and by the `=` predicate.
func NumericEqual(a, b Value) bool {
	if !IsNumber(a) || !IsNumber(b) {
		return false
	}
	if isComplex(a, b) {
		return false
	}
	if IsExact(a) && IsExact(b) {
		return toRat(a).Cmp(toRat(b)) == 0
	}
	return toFloat(a) == toFloat(b)
}
