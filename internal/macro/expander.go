package macro

import (
	"fmt"
	"sync"

	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/lambdust-scheme/lambdust/internal/errors"
)

// HygienePolicy selects how template-introduced identifiers are renamed
// (spec §4.3).
type HygienePolicy int

const (
	Strict HygienePolicy = iota
	Relaxed
	Custom
	None
)

// RenameStrategy describes a Custom-policy per-identifier rename rule.
type RenameStrategy int

const (
	RenamePrefix RenameStrategy = iota
	RenameSuffix
	RenameReplace
	RenameKeep
)

// CustomRule is one Custom-policy rename rule, applied when Guard (if
// non-nil) returns true for the identifier name.
type CustomRule struct {
	Strategy RenameStrategy
	Text     string // prefix/suffix/replacement text
	Guard    func(name string) bool
}

// Clause is one (pattern, template) clause of a syntax-rules transformer.
type Clause struct {
	Pattern  Pattern
	Template Datum
}

// SyntaxRulesTransformer binds a name to an ordered list of clauses plus
// the macro's literal-keyword set (spec §4.3).
type SyntaxRulesTransformer struct {
	Literals map[string]bool
	Clauses  []Clause
	// Policy controls hygienic renaming of template-introduced identifiers.
	Policy      HygienePolicy
	RelaxedSet  map[string]bool // identifiers exempted from renaming under Relaxed
	CustomRules []CustomRule
}

// ProceduralTransformer is a host procedure invoked with the macro-use
// Datum (as an AST-shaped value) and returning a replacement Datum,
// dispatched in the macro's definition environment (spec §4.3). Apply is
// supplied by the evaluator package at registration time to avoid an
// import cycle between macro and eval.
type ProceduralTransformer struct {
	Apply func(useDatum Datum) (Datum, error)
}

// Transformer is the sum type a macro name binds to.
type Transformer interface{ transformer() }

func (*SyntaxRulesTransformer) transformer() {}
func (*ProceduralTransformer) transformer()  {}

// DebugStep records one expansion step for the bounded ring buffer.
type DebugStep struct {
	MacroName string
	Input     Datum
	ClauseIdx int
	Bindings  Bindings
	Output    Datum
	Depth     int
}

// Breakpoint is an optional debug condition on an expansion step (spec
// §4.3). It is called synchronously from Expand for each recorded step;
// the first breakpoint returning true has that step stored as the
// expander's lastBreak. Expansion does not pause.
type Breakpoint func(step DebugStep) bool

// Expander expands macro uses to their residual syntax. It is the
// concurrency-safe, process-shared registry of macro definitions.
type Expander struct {
	mu                sync.RWMutex
	transformers      map[string]Transformer
	maxRecursionDepth int

	traceMu     sync.Mutex
	trace       []DebugStep
	traceBound  int
	breakpoints []Breakpoint
	lastBreak   *DebugStep

	renameCounter atomicCounter
}

// NewExpander creates an expander with the given recursion-depth limit
// (spec §6.5 macro expander option) and debug ring-buffer bound.
func NewExpander(maxRecursionDepth, traceBound int) *Expander {
	if maxRecursionDepth <= 0 {
		maxRecursionDepth = 500
	}
	if traceBound <= 0 {
		traceBound = 256
	}
	return &Expander{
		transformers: make(map[string]Transformer),
		maxRecursionDepth: maxRecursionDepth,
		traceBound:   traceBound,
	}
}

// Define binds name to transformer, under the expander's write lock.
func (e *Expander) Define(name string, transformer Transformer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transformers[name] = transformer
}

// Lookup returns the transformer bound to name, if any.
func (e *Expander) Lookup(name string) (Transformer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.transformers[name]
	return t, ok
}

// AddBreakpoint registers a debug breakpoint condition.
func (e *Expander) AddBreakpoint(bp Breakpoint) {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	e.breakpoints = append(e.breakpoints, bp)
}

// Trace returns a snapshot of the bounded debug ring buffer.
func (e *Expander) Trace() []DebugStep {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	out := make([]DebugStep, len(e.trace))
	copy(out, e.trace)
	return out
}

func (e *Expander) recordStep(step DebugStep) {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	e.trace = append(e.trace, step)
	if len(e.trace) > e.traceBound {
		e.trace = e.trace[len(e.trace)-e.traceBound:]
	}
	for _, bp := range e.breakpoints {
		if bp(step) {
			s := step
			e.lastBreak = &s
			break
		}
	}
}

// Expand fully expands node, recursively re-expanding the result while its
// head names another macro, up to the configured recursion depth (spec
// §4.3). It fails with syntax-error on a cyclic macro or an unmatched
// use.
func (e *Expander) Expand(node ast.Node) (ast.Node, error) {
	return e.expandDepth(node, 0)
}

func (e *Expander) expandDepth(node ast.Node, depth int) (ast.Node, error) {
	use, ok := node.(*ast.MacroUse)
	if !ok {
		return node, nil
	}
	if depth >= e.maxRecursionDepth {
		return nil, errors.Newf(errors.SyntaxError, "macro expansion exceeded max recursion depth (%d) at %q", e.maxRecursionDepth, use.Keyword)
	}
	transformer, ok := e.Lookup(use.Keyword)
	if !ok {
		return nil, errors.Newf(errors.SyntaxError, "unbound macro keyword %q", use.Keyword)
	}

	inputItems := make([]Datum, 0, len(use.Args)+1)
	inputItems = append(inputItems, DSymbol{Name: use.Keyword})
	for _, a := range use.Args {
		inputItems = append(inputItems, NodeToDatum(a))
	}
	input := DList{Items: inputItems}

	var expanded Datum
	var err error
	switch t := transformer.(type) {
	case *SyntaxRulesTransformer:
		expanded, err = e.expandSyntaxRules(use.Keyword, t, input, depth)
	case *ProceduralTransformer:
		expanded, err = t.Apply(input)
	default:
		return nil, errors.Newf(errors.SyntaxError, "unknown transformer kind for %q", use.Keyword)
	}
	if err != nil {
		return nil, err
	}

	resultNode := DatumToNode(expanded, use.Span())
	return e.expandDepth(e.rewrapIfMacroUse(resultNode), depth+1)
}

// rewrapIfMacroUse converts resultNode back into an *ast.MacroUse when its
// head names another registered transformer, so the recursive expandDepth
// call re-expands it (spec §4.3: "expand the result again if its head
// denotes another macro"). DatumToNode never itself produces *ast.MacroUse
// — a macro's expansion is ordinary syntax until this lookup says
// otherwise, which is exactly the check that lets a template invoking
// another macro actually re-expand instead of reaching the evaluator as
// an unbound-variable Application.
func (e *Expander) rewrapIfMacroUse(node ast.Node) ast.Node {
	app, ok := node.(*ast.Application)
	if !ok {
		return node
	}
	id, ok := app.Op.(*ast.Identifier)
	if !ok {
		return node
	}
	name := id.Name
	if _, ok := e.Lookup(name); !ok {
		// A Strict-renamed template identifier ("name~mark") still denotes
		// the macro keyword it was renamed from.
		i := len(name) - 1
		for i >= 0 && name[i] != '~' {
			i--
		}
		if i <= 0 {
			return node
		}
		if _, ok := e.Lookup(name[:i]); !ok {
			return node
		}
		name = name[:i]
	}
	return ast.NewMacroUse(node.Span(), name, app.Args)
}

func (e *Expander) expandSyntaxRules(name string, t *SyntaxRulesTransformer, input DList, depth int) (Datum, error) {
	for i, clause := range t.Clauses {
		bindings, ok := Match(clause.Pattern, input, t.Literals)
		if !ok {
			continue
		}
		mark := int(e.renameCounter.next())
		expanded := instantiate(clause.Template, bindings, t, mark)
		e.recordStep(DebugStep{MacroName: name, Input: input, ClauseIdx: i, Bindings: bindings, Output: expanded, Depth: depth})
		return expanded, nil
	}
	return nil, errors.Newf(errors.SyntaxError, "no syntax-rules clause of %q matches the use site", name)
}

type atomicCounter struct {
	mu sync.Mutex
	n  uint64
}

func (c *atomicCounter) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// instantiate substitutes pattern variables in tmpl with their bound
// values and splices ellipsis occurrences, renaming template-introduced
// identifiers per t.Policy (spec §4.3 hygiene).
func instantiate(tmpl Datum, bindings Bindings, t *SyntaxRulesTransformer, mark int) Datum {
	switch d := tmpl.(type) {
	case DSymbol:
		if bound, ok := bindings[d.Name]; ok {
			if datum, ok := bound.(Datum); ok {
				return datum
			}
			// A depth>=1 variable used outside an ellipsis context is a
			// template error in strict syntax-rules; fail soft by
			// returning the name unexpanded rather than panicking.
			return d
		}
		return renameIdentifier(d, t, mark)
	case DLiteral:
		return d
	case DList:
		return instantiateList(d, bindings, t, mark)
	default:
		return tmpl
	}
}

func instantiateList(d DList, bindings Bindings, t *SyntaxRulesTransformer, mark int) Datum {
	var items []Datum
	i := 0
	for i < len(d.Items) {
		item := d.Items[i]
		hasEllipsisNext := i+1 < len(d.Items) && isEllipsisSym(d.Items[i+1])
		if hasEllipsisNext {
			names := templateVariables(item)
			count := -1
			for _, n := range names {
				if seq, ok := bindings[n].([]any); ok {
					if count < 0 || len(seq) < count {
						count = len(seq)
					}
				}
			}
			if count < 0 {
				count = 0
			}
			for k := 0; k < count; k++ {
				sub := Bindings{}
				for key, v := range bindings {
					sub[key] = v
				}
				for _, n := range names {
					if seq, ok := bindings[n].([]any); ok && k < len(seq) {
						sub[n] = seq[k]
					}
				}
				items = append(items, instantiate(item, sub, t, mark))
			}
			i += 2
			continue
		}
		items = append(items, instantiate(item, bindings, t, mark))
		i++
	}
	var dotted Datum
	if d.Dotted != nil {
		dotted = instantiate(d.Dotted, bindings, t, mark)
	}
	return DList{Items: items, Dotted: dotted}
}

func isEllipsisSym(d Datum) bool {
	s, ok := d.(DSymbol)
	return ok && s.Name == "..."
}

func templateVariables(d Datum) []string {
	switch t := d.(type) {
	case DSymbol:
		return []string{t.Name}
	case DList:
		var names []string
		for _, item := range t.Items {
			if isEllipsisSym(item) {
				continue
			}
			names = append(names, templateVariables(item)...)
		}
		if t.Dotted != nil {
			names = append(names, templateVariables(t.Dotted)...)
		}
		return names
	default:
		return nil
	}
}

// coreSyntaxKeywords are identifiers a template may use literally as a
// sub-form head (spec §8's swap! wraps its body in "let") rather than as
// a fresh binding it introduces. They denote syntax the expander/evaluator
// dispatch on by exact name — DatumToNode's special-form table and
// rewrapIfMacroUse's transformer lookup both key off these names — so
// hygienic renaming must leave them alone regardless of policy.
var coreSyntaxKeywords = map[string]bool{
	"quote": true, "if": true, "lambda": true, "case-lambda": true,
	"begin": true, "define": true, "set!": true, "let": true,
	"call/cc": true, "else": true, "unquote": true, "quasiquote": true,
}

// renameIdentifier applies the expander's hygiene policy to a
// template-introduced identifier (one with no pattern-variable binding).
func renameIdentifier(d DSymbol, t *SyntaxRulesTransformer, mark int) Datum {
	if coreSyntaxKeywords[d.Name] {
		return d
	}
	switch t.Policy {
	case None:
		return d
	case Relaxed:
		if t.RelaxedSet[d.Name] {
			return d
		}
		return DSymbol{Name: d.Name, Mark: mark}
	case Custom:
		for _, rule := range t.CustomRules {
			if rule.Guard != nil && !rule.Guard(d.Name) {
				continue
			}
			switch rule.Strategy {
			case RenamePrefix:
				return DSymbol{Name: rule.Text + d.Name, Mark: mark}
			case RenameSuffix:
				return DSymbol{Name: d.Name + rule.Text, Mark: mark}
			case RenameReplace:
				return DSymbol{Name: rule.Text, Mark: mark}
			case RenameKeep:
				return d
			}
		}
		return DSymbol{Name: d.Name, Mark: mark}
	default: // Strict
		// Suffix by mark, not a fresh random tag per occurrence: the same
		// template identifier can appear more than once in one expansion
		// (spec §8's swap! template uses its introduced "t" twice, in the
		// binding and in the second set!) and every occurrence must rename
		// to the *same* fresh name to still refer to the same variable.
		// mark is unique per macro-use expansion, so distinct expansions
		// still can't collide with each other or with existing program text.
		return DSymbol{Name: fmt.Sprintf("%s~%d", d.Name, mark), Mark: mark}
	}
}
