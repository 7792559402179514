// Package macro implements the syntax-rules pattern matcher, template
// expander, and hygienic renaming of spec §4.3, plus a procedural
// transformer bridge.
//
// Macros match and rewrite syntax, not already-parsed special forms: a
// macro use's operands are viewed as a generic datum tree (identifiers,
// literals, lists, dotted pairs) rather than as typed ast.If/ast.Lambda
// nodes. NodeToDatum/DatumToNode bridge the two representations at the
// boundary — a macro use's unexpanded arguments convert to Datum for
// matching, and an expansion's result converts back to ast.Node for the
// evaluator. Anything the bridge cannot structurally decompose (an
// already-typed core form nested inside a macro argument) round-trips as
// an OpaqueNode datum, preserving identity without letting the pattern
// matcher reach inside it.
package macro

import "github.com/lambdust-scheme/lambdust/internal/ast"

// Datum is the generic syntax representation patterns and templates
// operate over.
type Datum interface{ datum() }

// DSymbol is an identifier occurrence in syntax.
type DSymbol struct {
	Name string
	// Mark identifies which macro expansion (if any) introduced this
	// identifier, for hygienic resolution (spec §4.3).
	Mark int
}

func (DSymbol) datum() {}

// DLiteral is a self-evaluating datum (number, string, boolean, char).
type DLiteral struct{ Value any }

func (DLiteral) datum() {}

// DList is a proper or dotted list of data. Dotted is nil for a proper
// list, or the tail datum for `(a b . c)`.
type DList struct {
	Items  []Datum
	Dotted Datum
}

func (DList) datum() {}

// OpaqueNode wraps an ast.Node the datum bridge could not decompose
// (e.g. an already-typed If/Lambda passed through a macro argument
// position). It matches only an identical pattern variable or `_`/`...`
// wildcard, never a literal or list sub-pattern.
type OpaqueNode struct{ Node ast.Node }

func (OpaqueNode) datum() {}

// NodeToDatum converts the common syntactic ast.Node shapes to Datum for
// pattern matching. Nodes this function does not recognize become
// OpaqueNode, preserving them as atomic (non-decomposable) data.
func NodeToDatum(n ast.Node) Datum {
	switch t := n.(type) {
	case *ast.Identifier:
		return DSymbol{Name: t.Name}
	case *ast.Literal:
		return DLiteral{Value: t.Datum}
	case *ast.Application:
		items := make([]Datum, 0, len(t.Args)+1)
		items = append(items, NodeToDatum(t.Op))
		for _, a := range t.Args {
			items = append(items, NodeToDatum(a))
		}
		return DList{Items: items}
	case *ast.MacroUse:
		items := make([]Datum, 0, len(t.Args)+1)
		items = append(items, DSymbol{Name: t.Keyword})
		for _, a := range t.Args {
			items = append(items, NodeToDatum(a))
		}
		return DList{Items: items}
	case *ast.Quote:
		return NodeToDatum(t.Datum)
	case nil:
		return DList{}
	default:
		return OpaqueNode{Node: n}
	}
}

// DatumToNode converts an expanded Datum back into an ast.Node for the
// evaluator: a DSymbol becomes an Identifier, a DLiteral a Literal, and an
// OpaqueNode unwraps to its original Node unchanged. A DList whose head
// names a core special form (if/lambda/begin/set!/define/let) is
// reconstructed as the typed node the evaluator actually dispatches on —
// the evaluator's *ast.Application case does a plain variable lookup on
// Op, so a macro template wrapping its expansion in e.g. "let" (spec §8's
// swap! example) must come back as something other than a bare
// Application naming an unbound variable "let". Anything else becomes a
// generic Application.
func DatumToNode(d Datum, span ast.Span) ast.Node {
	switch t := d.(type) {
	case DSymbol:
		return ast.NewIdentifier(span, t.Name)
	case DLiteral:
		return ast.NewLiteral(span, t.Value)
	case OpaqueNode:
		return t.Node
	case DList:
		return datumListToNode(t, span)
	default:
		return ast.NewLiteral(span, nil)
	}
}

// quotedDatumToNode reconstructs a Datum that sits under a quote as the
// plain symbolic-list shape eval's quoteToValue consumes (Identifier for
// a symbol, Application as a generic pair/list spine) — unlike
// DatumToNode, it never reinterprets a list head as a special form,
// since quoted data is never evaluated.
func quotedDatumToNode(d Datum, span ast.Span) ast.Node {
	switch t := d.(type) {
	case DSymbol:
		return ast.NewIdentifier(span, t.Name)
	case DLiteral:
		return ast.NewLiteral(span, t.Value)
	case OpaqueNode:
		return t.Node
	case DList:
		if len(t.Items) == 0 {
			return ast.NewLiteral(span, nil)
		}
		op := quotedDatumToNode(t.Items[0], span)
		args := make([]ast.Node, 0, len(t.Items)-1)
		for _, it := range t.Items[1:] {
			args = append(args, quotedDatumToNode(it, span))
		}
		return ast.NewApplication(span, op, args)
	default:
		return ast.NewLiteral(span, nil)
	}
}

func datumsToNodes(items []Datum, span ast.Span) []ast.Node {
	nodes := make([]ast.Node, 0, len(items))
	for _, it := range items {
		nodes = append(nodes, DatumToNode(it, span))
	}
	return nodes
}

func datumListToNode(t DList, span ast.Span) ast.Node {
	if len(t.Items) == 0 {
		return ast.NewLiteral(span, nil)
	}
	if head, ok := t.Items[0].(DSymbol); ok {
		if node, ok := coreFormToNode(head.Name, t.Items[1:], span); ok {
			return node
		}
	}
	op := DatumToNode(t.Items[0], span)
	args := datumsToNodes(t.Items[1:], span)
	return ast.NewApplication(span, op, args)
}

// coreFormToNode reconstructs a typed ast.Node for a recognized
// special-form head, or reports false to let the caller fall back to a
// generic Application. "let" has no dedicated ast.Node; it desugars to
// an immediately-applied lambda the same way a parser would.
func coreFormToNode(head string, rest []Datum, span ast.Span) (ast.Node, bool) {
	switch head {
	case "quote":
		if len(rest) != 1 {
			return nil, false
		}
		// The quoted payload is data, not code: reconstruct it with the
		// plain symbolic-list shape quoteToValue expects, never
		// special-casing a nested "if"/"let"/etc. head as a special form.
		return ast.NewQuote(span, quotedDatumToNode(rest[0], span)), true

	case "if":
		if len(rest) < 2 || len(rest) > 3 {
			return nil, false
		}
		test := DatumToNode(rest[0], span)
		then := DatumToNode(rest[1], span)
		var els ast.Node
		if len(rest) == 3 {
			els = DatumToNode(rest[2], span)
		}
		return ast.NewIf(span, test, then, els), true

	case "begin":
		return ast.NewBegin(span, datumsToNodes(rest, span)), true

	case "set!":
		if len(rest) != 2 {
			return nil, false
		}
		name, ok := rest[0].(DSymbol)
		if !ok {
			return nil, false
		}
		return ast.NewAssignment(span, name.Name, DatumToNode(rest[1], span)), true

	case "lambda":
		if len(rest) < 1 {
			return nil, false
		}
		formals, ok := datumToFormals(rest[0])
		if !ok {
			return nil, false
		}
		return ast.NewLambda(span, "", formals, datumsToNodes(rest[1:], span)), true

	case "define":
		return defineDatumToNode(rest, span)

	case "let":
		return letDatumToNode(rest, span)

	default:
		return nil, false
	}
}

// datumToFormals parses a lambda formals datum: a bare symbol (all-rest),
// a proper list of symbols, or a dotted list ending in a rest symbol.
func datumToFormals(d Datum) (ast.Formals, bool) {
	switch t := d.(type) {
	case DSymbol:
		return ast.Formals{Rest: t.Name, HasRest: true}, true
	case DList:
		var f ast.Formals
		for _, item := range t.Items {
			sym, ok := item.(DSymbol)
			if !ok {
				return ast.Formals{}, false
			}
			f.Fixed = append(f.Fixed, sym.Name)
		}
		if t.Dotted != nil {
			sym, ok := t.Dotted.(DSymbol)
			if !ok {
				return ast.Formals{}, false
			}
			f.Rest = sym.Name
			f.HasRest = true
		}
		return f, true
	default:
		return ast.Formals{}, false
	}
}

// defineDatumToNode handles both `(define name value)` and the procedure
// shorthand `(define (name . formals) body...)`.
func defineDatumToNode(rest []Datum, span ast.Span) (ast.Node, bool) {
	if len(rest) < 1 {
		return nil, false
	}
	switch head := rest[0].(type) {
	case DSymbol:
		value := ast.Node(ast.NewLiteral(span, nil))
		if len(rest) >= 2 {
			value = DatumToNode(rest[1], span)
		}
		return ast.NewDefinition(span, head.Name, value), true
	case DList:
		if len(head.Items) == 0 {
			return nil, false
		}
		name, ok := head.Items[0].(DSymbol)
		if !ok {
			return nil, false
		}
		formals, ok := datumToFormals(DList{Items: head.Items[1:], Dotted: head.Dotted})
		if !ok {
			return nil, false
		}
		lambda := ast.NewLambda(span, name.Name, formals, datumsToNodes(rest[1:], span))
		return ast.NewDefinition(span, name.Name, lambda), true
	default:
		return nil, false
	}
}

// letDatumToNode desugars unnamed `(let ((v e) ...) body...)` into
// `((lambda (v ...) body...) e ...)`. Named let (a leading symbol before
// the bindings list) isn't a simple lambda application and falls back to
// a generic Application instead of being misparsed.
func letDatumToNode(rest []Datum, span ast.Span) (ast.Node, bool) {
	if len(rest) < 1 {
		return nil, false
	}
	bindings, ok := rest[0].(DList)
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(bindings.Items))
	values := make([]ast.Node, 0, len(bindings.Items))
	for _, b := range bindings.Items {
		pair, ok := b.(DList)
		if !ok || len(pair.Items) != 2 {
			return nil, false
		}
		name, ok := pair.Items[0].(DSymbol)
		if !ok {
			return nil, false
		}
		names = append(names, name.Name)
		values = append(values, DatumToNode(pair.Items[1], span))
	}
	body := datumsToNodes(rest[1:], span)
	lambda := ast.NewLambda(span, "", ast.Formals{Fixed: names}, body)
	return ast.NewApplication(span, lambda, values), true
}

// Equal performs a structural (literal-level) comparison of two data,
// ignoring hygiene marks — used to match literal sub-patterns (spec §4.3:
// "a literal datum (matches by equal?)").
func Equal(a, b Datum) bool {
	switch x := a.(type) {
	case DSymbol:
		y, ok := b.(DSymbol)
		return ok && x.Name == y.Name
	case DLiteral:
		y, ok := b.(DLiteral)
		return ok && x.Value == y.Value
	case DList:
		y, ok := b.(DList)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		if (x.Dotted == nil) != (y.Dotted == nil) {
			return false
		}
		if x.Dotted != nil {
			return Equal(x.Dotted, y.Dotted)
		}
		return true
	default:
		return false
	}
}
