package eval

import (
	"math/big"

	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// literalToValue converts a Literal node's opaque Datum (produced by the
// out-of-scope parser, spec §6.1) into a runtime Value.
func literalToValue(datum any) value.Value {
	switch d := datum.(type) {
	case nil:
		return value.TheNil
	case value.Value:
		return d
	case int64:
		return value.NewInteger(d)
	case int:
		return value.NewInteger(int64(d))
	case float64:
		return value.NewReal(d)
	case *big.Int:
		return value.NewIntegerFromBig(d)
	case *big.Rat:
		r, err := value.NewRational(d.Num(), d.Denom())
		if err != nil {
			return value.TheUnspecified
		}
		return r
	case string:
		return value.NewString(d)
	case bool:
		return value.Bool(d)
	case rune:
		return value.Char{Value: d}
	default:
		return value.TheUnspecified
	}
}

// quoteToValue converts a Quote's Datum sub-tree to a Value by structural
// copy, interning symbols (spec §4.4). The parser is expected to shape a
// quoted list as nested Application nodes (Op . Args) the same way it
// shapes ordinary syntax; this function treats that shape as data instead
// of code.
func quoteToValue(n ast.Node) value.Value {
	switch t := n.(type) {
	case nil:
		return value.TheNil
	case *ast.Literal:
		return literalToValue(t.Datum)
	case *ast.Identifier:
		return value.Intern(t.Name)
	case *ast.Quote:
		return value.ListFromSlice([]value.Value{value.Intern("quote"), quoteToValue(t.Datum)})
	case *ast.Application:
		items := make([]value.Value, 0, len(t.Args)+1)
		items = append(items, quoteToValue(t.Op))
		for _, a := range t.Args {
			items = append(items, quoteToValue(a))
		}
		return value.ListFromSlice(items)
	default:
		return value.TheUnspecified
	}
}
