package cmd

import (
	"github.com/lambdust-scheme/lambdust/internal/ast"
)

// sp is a synthesized (parser-less) source span; this CLI never reads
// source text, so every node it builds carries an empty span.
func sp() ast.Span { return ast.Span{} }

func lit(v any) ast.Node        { return ast.NewLiteral(sp(), v) }
func id(name string) ast.Node   { return ast.NewIdentifier(sp(), name) }

// demoFactorial builds the tail-recursive factorial procedure as a named
// lambda; callers evaluate it and bind the result as fact-iter:
//
//	(lambda (n acc)
//	  (if (= n 0) acc (fact-iter (- n 1) (* n acc))))
//
// used by both "run" and "metrics" as the built-in smoke-test workload
// (spec §4.4's tail-call contract, §4.9's call-count-driven tiering),
// the way the teacher's rosetta_examples_test.go exercises the
// interpreter against a small fixed set of reference programs instead of
// reading user-supplied source.
func demoFactorial() ast.Node {
	return ast.NewLambda(sp(), "fact-iter", ast.Formals{Fixed: []string{"n", "acc"}}, []ast.Node{
		ast.NewIf(sp(),
			ast.NewApplication(sp(), id("="), []ast.Node{id("n"), lit(int64(0))}),
			id("acc"),
			ast.NewApplication(sp(), id("fact-iter"), []ast.Node{
				ast.NewApplication(sp(), id("-"), []ast.Node{id("n"), lit(int64(1))}),
				ast.NewApplication(sp(), id("*"), []ast.Node{id("n"), id("acc")}),
			}),
		),
	})
}

// demoFactorialCall builds `(fact-iter n 1)`.
func demoFactorialCall(n int64) ast.Node {
	return ast.NewApplication(sp(), id("fact-iter"), []ast.Node{lit(n), lit(int64(1))})
}
