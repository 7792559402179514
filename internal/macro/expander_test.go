package macro

import (
	"testing"

	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(name string) Datum  { return DSymbol{Name: name} }
func lit(v any) Datum        { return DLiteral{Value: v} }
func lst(items ...Datum) DList { return DList{Items: items} }

// swapTransformer builds the spec §8 example:
//
//	(define-syntax swap!
//	  (syntax-rules ()
//	    ((_ a b) (let ((t a)) (set! a b) (set! b t)))))
func swapTransformer(policy HygienePolicy) *SyntaxRulesTransformer {
	pattern, err := ParsePattern(lst(sym("_"), sym("a"), sym("b")), nil)
	if err != nil {
		panic(err)
	}
	template := lst(
		sym("let"),
		lst(lst(sym("t"), sym("a"))),
		lst(sym("set!"), sym("a"), sym("b")),
		lst(sym("set!"), sym("b"), sym("t")),
	)
	return &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses:  []Clause{{Pattern: pattern, Template: template}},
		Policy:   policy,
	}
}

func macroUseNode(keyword string, args ...ast.Node) *ast.MacroUse {
	return ast.NewMacroUse(ast.Span{}, keyword, args)
}

func TestSwapHygieneRenamesIntroducedTemp(t *testing.T) {
	e := NewExpander(0, 0)
	e.Define("swap!", swapTransformer(Strict))

	use := macroUseNode("swap!", ast.NewIdentifier(ast.Span{}, "t"), ast.NewIdentifier(ast.Span{}, "x"))
	expanded, err := e.Expand(use)
	require.NoError(t, err)

	// "let" has no dedicated ast.Node; DatumToNode desugars it to an
	// immediately-applied lambda, the way a parser would.
	call, ok := expanded.(*ast.Application)
	require.True(t, ok, "let-expansion should desugar to an applied lambda, got %T", expanded)
	lambda, ok := call.Op.(*ast.Lambda)
	require.True(t, ok, "let's operator position should be the desugared lambda, got %T", call.Op)
	require.Len(t, lambda.Formals.Fixed, 1)

	// The let-bound temporary must NOT collide with the caller's "t"
	// argument: it is renamed by the Strict hygiene policy.
	tempName := lambda.Formals.Fixed[0]
	assert.NotEqual(t, "t", tempName, "hygienic expansion must rename the introduced temporary")

	// Both occurrences of the introduced temporary (the binding and its
	// use in the second set!) must rename identically, or the expansion
	// sets an unrelated, unbound variable instead of swapping back.
	require.Len(t, lambda.Body, 2)
	secondSet, ok := lambda.Body[1].(*ast.Assignment)
	require.True(t, ok)
	valueIdent, ok := secondSet.Value.(*ast.Identifier)
	require.True(t, ok)
	assert.Equal(t, tempName, valueIdent.Name, "both occurrences of the introduced temporary must rename identically")
}

func TestSwapNoneHygieneLeavesIdentifiersAlone(t *testing.T) {
	e := NewExpander(0, 0)
	e.Define("swap!", swapTransformer(None))

	use := macroUseNode("swap!", ast.NewIdentifier(ast.Span{}, "t"), ast.NewIdentifier(ast.Span{}, "x"))
	expanded, err := e.Expand(use)
	require.NoError(t, err)

	call := expanded.(*ast.Application)
	lambda := call.Op.(*ast.Lambda)
	assert.Equal(t, "t", lambda.Formals.Fixed[0], "None policy must not rename template identifiers")
}

// TestExpansionReexpandsMacroInvokingAnotherMacro covers spec §4.3's
// "expand the result again if its head denotes another macro": a
// template that itself invokes a second registered macro must have that
// invocation expanded too, not reach the evaluator as a bare Application
// naming the second macro's keyword as an unbound variable.
func TestExpansionReexpandsMacroInvokingAnotherMacro(t *testing.T) {
	e := NewExpander(0, 0)

	innerPattern, err := ParsePattern(lst(sym("_"), sym("a")), nil)
	require.NoError(t, err)
	e.Define("repeat-it", &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses:  []Clause{{Pattern: innerPattern, Template: lst(sym("list"), sym("a"), sym("a"))}},
		Policy:   None,
	})

	outerPattern, err := ParsePattern(lst(sym("_"), sym("a")), nil)
	require.NoError(t, err)
	e.Define("twice", &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses:  []Clause{{Pattern: outerPattern, Template: lst(sym("repeat-it"), sym("a"))}},
		Policy:   None,
	})

	use := macroUseNode("twice", ast.NewLiteral(ast.Span{}, int64(5)))
	expanded, err := e.Expand(use)
	require.NoError(t, err)

	app, ok := expanded.(*ast.Application)
	require.True(t, ok, "expected the fully re-expanded (list 5 5), got %T", expanded)
	op, ok := app.Op.(*ast.Identifier)
	require.True(t, ok)
	assert.Equal(t, "list", op.Name, "repeat-it's own expansion must have been re-expanded, not left as a bare call to repeat-it")
	require.Len(t, app.Args, 2)
}

func TestEllipsisTemplateSplicesPerRepetition(t *testing.T) {
	// (my-list a ...) -> (list a ...)
	pattern, err := ParsePattern(lst(sym("_"), sym("a"), sym("...")), nil)
	require.NoError(t, err)
	template := lst(sym("list"), sym("a"), sym("..."))
	transformer := &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses:  []Clause{{Pattern: pattern, Template: template}},
		Policy:   None,
	}

	e := NewExpander(0, 0)
	e.Define("my-list", transformer)

	use := macroUseNode("my-list",
		ast.NewLiteral(ast.Span{}, int64(1)),
		ast.NewLiteral(ast.Span{}, int64(2)),
		ast.NewLiteral(ast.Span{}, int64(3)),
	)
	expanded, err := e.Expand(use)
	require.NoError(t, err)

	app := expanded.(*ast.Application)
	op := app.Op.(*ast.Identifier)
	assert.Equal(t, "list", op.Name)
	require.Len(t, app.Args, 3)
}

func TestUnmatchedClauseFailsWithSyntaxError(t *testing.T) {
	pattern, err := ParsePattern(lst(sym("_"), sym("a"), sym("b")), nil)
	require.NoError(t, err)
	transformer := &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses:  []Clause{{Pattern: pattern, Template: sym("a")}},
	}
	e := NewExpander(0, 0)
	e.Define("two-arg", transformer)

	use := macroUseNode("two-arg", ast.NewIdentifier(ast.Span{}, "only-one"))
	_, err = e.Expand(use)
	assert.Error(t, err)
}

func TestRecursionDepthLimitIsEnforced(t *testing.T) {
	// infinite-loop expands to itself forever.
	pattern, err := ParsePattern(sym("_"), nil)
	require.NoError(t, err)
	e := NewExpander(5, 0)
	transformer := &SyntaxRulesTransformer{
		Literals: map[string]bool{},
		Clauses: []Clause{{
			Pattern:  pattern,
			Template: lst(sym("infinite-loop")),
		}},
	}
	e.Define("infinite-loop", transformer)

	use := macroUseNode("infinite-loop")
	_, err = e.Expand(use)
	require.Error(t, err)
}

func TestUnboundMacroKeywordFails(t *testing.T) {
	e := NewExpander(0, 0)
	use := macroUseNode("no-such-macro")
	_, err := e.Expand(use)
	assert.Error(t, err)
}

func TestProceduralTransformerIsDispatched(t *testing.T) {
	e := NewExpander(0, 0)
	called := false
	e.Define("ident-macro", &ProceduralTransformer{
		Apply: func(useDatum Datum) (Datum, error) {
			called = true
			list := useDatum.(DList)
			return list.Items[1], nil
		},
	})

	use := macroUseNode("ident-macro", ast.NewLiteral(ast.Span{}, int64(7)))
	expanded, err := e.Expand(use)
	require.NoError(t, err)
	require.True(t, called)
	litNode := expanded.(*ast.Literal)
	assert.Equal(t, int64(7), litNode.Datum)
}

func TestNonMacroUseNodePassesThrough(t *testing.T) {
	e := NewExpander(0, 0)
	id := ast.NewIdentifier(ast.Span{}, "x")
	out, err := e.Expand(id)
	require.NoError(t, err)
	assert.Same(t, id, out)
}

func TestTraceRecordsExpansionSteps(t *testing.T) {
	e := NewExpander(0, 4)
	e.Define("swap!", swapTransformer(None))
	use := macroUseNode("swap!", ast.NewIdentifier(ast.Span{}, "t"), ast.NewIdentifier(ast.Span{}, "x"))
	_, err := e.Expand(use)
	require.NoError(t, err)

	trace := e.Trace()
	require.Len(t, trace, 1)
	assert.Equal(t, "swap!", trace[0].MacroName)
}

func TestBreakpointFires(t *testing.T) {
	e := NewExpander(0, 4)
	e.Define("swap!", swapTransformer(None))
	fired := false
	e.AddBreakpoint(func(step DebugStep) bool {
		if step.MacroName == "swap!" {
			fired = true
		}
		return fired
	})
	use := macroUseNode("swap!", ast.NewIdentifier(ast.Span{}, "t"), ast.NewIdentifier(ast.Span{}, "x"))
	_, err := e.Expand(use)
	require.NoError(t, err)
	assert.True(t, fired)
}
