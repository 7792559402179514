package macro

import "github.com/lambdust-scheme/lambdust/internal/errors"

// Pattern is the pattern-language sum of spec §4.3: an identifier (binds),
// a literal keyword, a literal datum, a list pattern (possibly with one
// ellipsis sub-pattern), or a dotted tail.
type Pattern struct {
	// Kind selects which field is meaningful.
	Kind        PatternKind
	Name        string    // Identifier/Literal-keyword name
	Literal     Datum     // Literal-datum pattern
	Items       []Pattern // List pattern elements
	EllipsisAt  int       // index of the element followed by "...", or -1
	DottedTail  *Pattern  // non-nil for a dotted-tail pattern
}

type PatternKind int

const (
	PatIdentifier PatternKind = iota
	PatLiteralKeyword
	PatLiteralDatum
	PatList
	PatWildcard // "_"
)

// Bindings maps a pattern variable to either a single Datum (depth 0) or a
// nested slice of Bindings-shaped values for deeper ellipsis nesting.
// depth >= 1 variables store []any where each element is itself Datum (at
// depth 1) or []any (at depth >1).
type Bindings map[string]any

// Match attempts to match input against pat given the set of literal
// keywords. It returns (bindings, true) on success, or (nil, false) on a
// silent failure (spec §4.3: the matcher tries the next clause).
func Match(pat Pattern, input Datum, literals map[string]bool) (Bindings, bool) {
	b := Bindings{}
	ok := matchInto(pat, input, literals, b)
	if !ok {
		return nil, false
	}
	return b, true
}

func matchInto(pat Pattern, input Datum, literals map[string]bool, b Bindings) bool {
	switch pat.Kind {
	case PatWildcard:
		return true
	case PatIdentifier:
		if literals[pat.Name] {
			sym, ok := input.(DSymbol)
			return ok && sym.Name == pat.Name
		}
		b[pat.Name] = input
		return true
	case PatLiteralKeyword:
		sym, ok := input.(DSymbol)
		return ok && sym.Name == pat.Name
	case PatLiteralDatum:
		return Equal(pat.Literal, input)
	case PatList:
		return matchList(pat, input, literals, b)
	default:
		return false
	}
}

func matchList(pat Pattern, input Datum, literals map[string]bool, b Bindings) bool {
	lst, ok := input.(DList)
	if !ok {
		return false
	}
	if pat.EllipsisAt < 0 {
		if pat.DottedTail != nil {
			if len(lst.Items) < len(pat.Items) {
				return false
			}
			for i, sub := range pat.Items {
				if !matchInto(sub, lst.Items[i], literals, b) {
					return false
				}
			}
			rest := DList{Items: lst.Items[len(pat.Items):], Dotted: lst.Dotted}
			var restDatum Datum = rest
			if len(rest.Items) == 0 && rest.Dotted != nil {
				restDatum = rest.Dotted
			}
			return matchInto(*pat.DottedTail, restDatum, literals, b)
		}
		if len(lst.Items) != len(pat.Items) || lst.Dotted != nil {
			return false
		}
		for i, sub := range pat.Items {
			if !matchInto(sub, lst.Items[i], literals, b) {
				return false
			}
		}
		return true
	}

	// Ellipsis pattern: pat.Items[EllipsisAt] repeats zero-or-more times,
	// matching input elements [EllipsisAt, len(input)-tailLen).
	before := pat.Items[:pat.EllipsisAt]
	repeated := pat.Items[pat.EllipsisAt]
	after := pat.Items[pat.EllipsisAt+1:]

	if len(lst.Items) < len(before)+len(after) {
		return false
	}
	for i, sub := range before {
		if !matchInto(sub, lst.Items[i], literals, b) {
			return false
		}
	}
	repeatCount := len(lst.Items) - len(before) - len(after)
	varNames := patternVariables(repeated, literals)
	collected := make(map[string][]any, len(varNames))
	for _, name := range varNames {
		collected[name] = []any{}
	}
	for i := 0; i < repeatCount; i++ {
		sub := Bindings{}
		if !matchInto(repeated, lst.Items[len(before)+i], literals, sub) {
			return false
		}
		for _, name := range varNames {
			collected[name] = append(collected[name], sub[name])
		}
	}
	for name, vals := range collected {
		b[name] = vals
	}
	for i, sub := range after {
		if !matchInto(sub, lst.Items[len(before)+repeatCount+i], literals, b) {
			return false
		}
	}
	return true
}

// patternVariables collects the identifier names (depth-0 relative to
// this pattern) bound by pat, excluding literal keywords and wildcards.
func patternVariables(pat Pattern, literals map[string]bool) []string {
	switch pat.Kind {
	case PatIdentifier:
		if literals[pat.Name] {
			return nil
		}
		return []string{pat.Name}
	case PatList:
		var names []string
		for _, sub := range pat.Items {
			names = append(names, patternVariables(sub, literals)...)
		}
		if pat.DottedTail != nil {
			names = append(names, patternVariables(*pat.DottedTail, literals)...)
		}
		return names
	default:
		return nil
	}
}

// ParsePattern converts a pattern written as a Datum (the macro
// definition's literal pattern syntax) into a Pattern, recognizing "..."
// and "_" and dotted tails.
func ParsePattern(d Datum, literals map[string]bool) (Pattern, error) {
	switch t := d.(type) {
	case DSymbol:
		if t.Name == "_" {
			return Pattern{Kind: PatWildcard}, nil
		}
		if literals[t.Name] {
			return Pattern{Kind: PatLiteralKeyword, Name: t.Name}, nil
		}
		return Pattern{Kind: PatIdentifier, Name: t.Name}, nil
	case DLiteral:
		return Pattern{Kind: PatLiteralDatum, Literal: t}, nil
	case DList:
		items := make([]Pattern, 0, len(t.Items))
		ellipsisAt := -1
		for _, item := range t.Items {
			if sym, ok := item.(DSymbol); ok && sym.Name == "..." {
				if len(items) == 0 {
					return Pattern{}, errors.New(errors.SyntaxError, "ellipsis with no preceding pattern")
				}
				ellipsisAt = len(items) - 1
				continue
			}
			sub, err := ParsePattern(item, literals)
			if err != nil {
				return Pattern{}, err
			}
			items = append(items, sub)
		}
		pat := Pattern{Kind: PatList, Items: items, EllipsisAt: ellipsisAt}
		if t.Dotted != nil {
			tailPat, err := ParsePattern(t.Dotted, literals)
			if err != nil {
				return Pattern{}, err
			}
			pat.DottedTail = &tailPat
		}
		return pat, nil
	default:
		return Pattern{}, errors.New(errors.SyntaxError, "unsupported pattern datum")
	}
}
