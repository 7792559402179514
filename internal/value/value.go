// Package value implements the universal runtime datum of spec §3: a
// tagged sum over literals, compound data, procedures, and the effect
// carriers and concurrency values the rest of the core surfaces.
//
// A value's tag never changes after construction (spec §3 invariant). Most
// variants are immutable by construction; the few mutable ones (MutablePair,
// MutableString, Vector, HashTable, and the object-graph-owning containers)
// say so in their doc comment.
package value

import (
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// caseFolder performs locale-neutral Unicode case folding (spec §3's
// characters/strings are Unicode scalar values; R7RS's char-ci=?/
// string-ci=? family and SRFI-14 case-insensitive char-sets are built on
// top of this core and need a fold that doesn't commit to one language's
// casing rules).
var caseFolder = cases.Fold()

// Value is satisfied by every runtime datum. It intentionally carries no
// methods beyond tag/print so that type-specific behavior (arithmetic,
// equality, field access) lives in free functions that can fail with a
// classified error rather than via interface dispatch that would need to
// panic on a wrong-type receiver.
type Value interface {
	// TypeName returns the value's tag, e.g. "pair", "integer", "string".
	TypeName() string
	// String renders the value the way `write` would.
	String() string
}

// Unspecified is the result of operations that the report does not assign
// a value to (e.g. set!, an if with no alternate and a false test).
type Unspecified struct{}

func (Unspecified) TypeName() string { return "unspecified" }
func (Unspecified) String() string   { return "" }

// TheUnspecified is the single shared Unspecified instance; it is eq? to
// itself by construction since two callers observe the same allocation.
var TheUnspecified = Unspecified{}

// Nil is Scheme's empty list, '().
type Nil struct{}

func (Nil) TypeName() string { return "null" }
func (Nil) String() string   { return "()" }

// TheNil is the single shared empty-list instance.
var TheNil = Nil{}

// Boolean is #t or #f. Truthiness (spec §4.4) treats every value except
// the #f instance as true.
type Boolean struct{ Value bool }

func (b Boolean) TypeName() string { return "boolean" }
func (b Boolean) String() string {
	if b.Value {
		return "#t"
	}
	return "#f"
}

// True and False are the two shared Boolean instances; eq? compares equal
// to itself for identical immutable atoms (spec §3).
var (
	True  = Boolean{Value: true}
	False = Boolean{Value: false}
)

// Bool returns True or False for b.
func Bool(b bool) Boolean {
	if b {
		return True
	}
	return False
}

// IsTruthy implements spec §4.4's truthiness rule: everything except #f.
func IsTruthy(v Value) bool {
	b, ok := v.(Boolean)
	return !ok || b.Value
}

// Char is a Unicode scalar value (never a surrogate half).
type Char struct{ Value rune }

func (c Char) TypeName() string { return "char" }
func (c Char) String() string   { return string(c.Value) }

// Fold returns c case-folded, the shared primitive R7RS's char-ci=? and
// SRFI-14's case-insensitive char-sets build on (spec §1 places those
// standard-library procedures out of this core's scope, but the scalar
// operation they need lives here alongside the rest of the value model).
// A fold that expands to more than one scalar value (e.g. German "ß" ->
// "ss") has no single-Char result, so c is returned unchanged rather than
// silently picking one of the expansion's runes.
func (c Char) Fold() Char {
	folded := []rune(caseFolder.String(string(c.Value)))
	if len(folded) != 1 {
		return c
	}
	return Char{Value: folded[0]}
}

// String is an immutable UTF-8 string. Only MutableString is a legal
// target of string-mutation (spec §3 invariant).
type String struct{ Value string }

// NewString constructs a String in Unicode Normalization Form C (spec §3:
// strings are sequences of Unicode scalar values; composing to NFC keeps
// eqv?/equal? stable across inputs that denote the same text via
// different combining-character sequences).
func NewString(s string) String {
	return String{Value: norm.NFC.String(s)}
}

func (s String) TypeName() string { return "string" }
func (s String) String() string   { return strconv.Quote(s.Value) }

// Fold returns s case-folded as a whole (used by the case-insensitive
// string/char-set primitives layered on this core). Unlike Char.Fold, a
// rune whose fold expands to several scalar values (e.g. "ß" -> "ss") is
// expanded.
func (s String) Fold() String {
	return String{Value: caseFolder.String(s.Value)}
}

// MutableString is the sole mutable string variant.
type MutableString struct{ Runes []rune }

func NewMutableString(s string) *MutableString {
	return &MutableString{Runes: []rune(s)}
}

func (s *MutableString) TypeName() string { return "mutable-string" }
func (s *MutableString) String() string   { return strconv.Quote(string(s.Runes)) }

// Bytevector is a fixed-size mutable array of bytes.
type Bytevector struct{ Bytes []byte }

func (b *Bytevector) TypeName() string { return "bytevector" }
func (b *Bytevector) String() string {
	s := "#u8("
	for i, by := range b.Bytes {
		if i > 0 {
			s += " "
		}
		s += strconv.Itoa(int(by))
	}
	return s + ")"
}
