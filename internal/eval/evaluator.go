// Package eval implements the evaluator of spec §4.4: a tree-walking
// state machine over ast.Node driven by an explicit, persistent
// continuation (spec §4.5's CEK-style frame sequence) rather than Go's own
// call stack, so that tail calls are genuine loop iterations and call/cc
// captures a continuation that can be invoked any number of times from
// any dynamic extent.
//
// Grounded on the teacher's evaluator/core_evaluator.go dispatch-loop idiom
// (one big switch over node kind, a shared "current environment" threaded
// through) generalized to Scheme's node set, and on
// runtime/callstack.go's named-frame tracking (ported to eval/callstack.go).
package eval

import (
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/lambdust-scheme/lambdust/internal/effect"
	"github.com/lambdust-scheme/lambdust/internal/environment"
	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/macro"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// SafepointPoller is the minimal capability the evaluator needs from the
// GC heap to honor a pending collection request at a poll site (spec
// §4.8/§5: "safepoint polls during allocation and back-edges"); satisfied
// by *gc.Heap. Declared here, not there, the same way value.Environment
// avoids a hard dependency on the environment package — the evaluator
// shouldn't need to import the GC's collector internals just to park at
// a safepoint.
type SafepointPoller interface {
	PollSafepoint()
}

// CallProfiler is the minimal capability the evaluator needs from the JIT
// tier controller to feed its per-function call counters (spec §4.9);
// satisfied by an adapter around *jit.Controller. Declared here rather
// than imported from internal/jit for the same reason as SafepointPoller.
type CallProfiler interface {
	RecordCall(proc *value.Procedure, args []value.Value, elapsed time.Duration)
}

// Evaluator holds the cross-call state a Run needs: the macro expander
// (for late MacroUse nodes the parser/expander pipeline left unexpanded),
// a logger, and a bound on named-procedure recursion depth.
type Evaluator struct {
	Expander  *macro.Expander
	Logger    *zap.Logger
	MaxDepth  int
	Heap      SafepointPoller // nil disables safepoint polling (e.g. in tests)
	Profiler  CallProfiler    // nil disables JIT call-count profiling
	IOContext effect.IOContext          // nil leaves IO-monad run-monadic calls erroring (no console bound)
	Globals   *environment.Environment  // State monad's threaded scope; nil falls back to a throwaway environment
	callStack *CallStack
	winds     *Winder
}

// profileCall reports a user-procedure call to the JIT tier controller.
// CEK-style tail calls reuse the loop rather than bracketing a call with a
// return, so no wall-clock duration brackets this specific invocation;
// call-count-driven tiering (the controller's primary promotion signal)
// still sees every call. A nil Profiler is a no-op.
func (ev *Evaluator) profileCall(proc *value.Procedure, args []value.Value) {
	if ev.Profiler != nil {
		ev.Profiler.RecordCall(proc, args, 0)
	}
}

// pollSafepoint parks this thread if the GC heap has a collection
// pending. A nil Heap is a no-op, so evaluators built without GC
// integration (most unit tests) behave exactly as before.
func (ev *Evaluator) pollSafepoint() {
	if ev.Heap != nil {
		ev.Heap.PollSafepoint()
	}
}

// DynamicWindName is the reserved primitive name beginApply intercepts to
// give dynamic-wind evaluator-level access (spec SPEC_FULL.md §C); the
// registered *value.Primitive's own Impl is never called.
const DynamicWindName = "dynamic-wind"

// RunMonadicName is the reserved primitive name beginApply intercepts to
// collapse a *effect.Monadic at an explicit evaluator boundary (spec
// §4.4's "run-monadic" step): the registered *value.Primitive's own Impl
// is never called, exactly like DynamicWindName above.
const RunMonadicName = "run-monadic"

// New creates an Evaluator. A nil logger is replaced with a no-op logger
// so callers need not special-case construction (spec SPEC_FULL.md A.1).
func New(expander *macro.Expander, logger *zap.Logger, maxDepth int) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		Expander:  expander,
		Logger:    logger,
		MaxDepth:  maxDepth,
		callStack: NewCallStack(maxDepth),
		winds:     newWinder(),
	}
}

// StackTrace returns a snapshot of the currently live named-procedure
// activations, most recent last (spec §6.3/§7), for attaching to an
// uncaught error's report.
func (ev *Evaluator) StackTrace() lerrors.StackTrace {
	return ev.callStack.Trace()
}

// Eval evaluates node in env to completion (spec §4.4), driving the
// explicit-continuation loop from an empty (top-level) continuation.
func (ev *Evaluator) Eval(node ast.Node, env *environment.Environment) (value.Value, error) {
	return ev.run(node, env, nil)
}

// run evaluates node in env against continuation k.
func (ev *Evaluator) run(node ast.Node, env *environment.Environment, k *Kont) (value.Value, error) {
	return ev.loop(node, env, nil, false, k)
}

// resume redelivers v as the result of whatever captured k, without
// evaluating any control node first — this is how invoking a captured
// continuation (spec §4.5) re-enters the driver loop.
func (ev *Evaluator) resume(k *Kont, v value.Value) (value.Value, error) {
	return ev.loop(nil, nil, v, true, k)
}

// loop is the single driver. It alternates between "evaluating a control
// node" and "delivering a value to the current continuation", never
// recursing for a tail position — tail calls and tail ifs/begins reuse the
// same Kont and loop again, giving O(1) Go-stack growth per spec §4.4's
// tail-call contract.
func (ev *Evaluator) loop(node ast.Node, env *environment.Environment, initial value.Value, hasInitial bool, k *Kont) (value.Value, error) {
	ctrl := node
	val := initial
	hasValue := hasInitial

	for {
		ev.pollSafepoint()
		if hasValue {
			if k == nil {
				// Control has reached the top-level return point, so the
				// frame that returns there is done too.
				ev.callStack.PopReturnsTo(nil)
				return val, nil
			}
			frame := k.Frame
			rest := k.Next
			ev.callStack.PopReturnsTo(k)
			switch f := frame.(type) {
			case fIf:
				k = rest
				if value.IsTruthy(val) {
					ctrl, env, hasValue = f.Then, f.Env, false
					continue
				}
				if f.Else == nil {
					val = value.TheUnspecified
					continue
				}
				ctrl, env, hasValue = f.Else, f.Env, false
				continue

			case fBegin:
				k = rest
				if len(f.Remaining) > 1 {
					k = &Kont{Frame: fBegin{Remaining: f.Remaining[1:], Env: f.Env}, Next: k}
				}
				ctrl, env, hasValue = f.Remaining[0], f.Env, false
				continue

			case fDefine:
				k = rest
				f.Env.Define(f.Name, val)
				val = value.TheUnspecified
				continue

			case fAssign:
				k = rest
				if err := f.Env.Set(f.Name, val); err != nil {
					return nil, err
				}
				val = value.TheUnspecified
				continue

			case fOperator:
				opVal := val
				if len(f.ArgNodes) == 0 {
					res, err := ev.beginApply(opVal, nil, rest, f.Span)
					if err != nil {
						return nil, err
					}
					if res.Abandon {
						return res.Value, nil
					}
					if res.Tail {
						k, ctrl, env, hasValue = res.K, res.Ctrl, res.Env, false
						continue
					}
					val, k = res.Value, res.K
					continue
				}
				k = &Kont{Frame: fArgs{Op: opVal, Pending: f.ArgNodes[1:], Done: nil, Env: f.Env, Span: f.Span}, Next: rest}
				ctrl, env, hasValue = f.ArgNodes[0], f.Env, false
				continue

			case fArgs:
				done := make([]value.Value, 0, len(f.Done)+1)
				done = append(done, f.Done...)
				done = append(done, val)
				if len(f.Pending) == 0 {
					res, err := ev.beginApply(f.Op, done, rest, f.Span)
					if err != nil {
						return nil, err
					}
					if res.Abandon {
						return res.Value, nil
					}
					if res.Tail {
						k, ctrl, env, hasValue = res.K, res.Ctrl, res.Env, false
						continue
					}
					val, k = res.Value, res.K
					continue
				}
				k = &Kont{Frame: fArgs{Op: f.Op, Pending: f.Pending[1:], Done: done, Env: f.Env, Span: f.Span}, Next: rest}
				ctrl, env, hasValue = f.Pending[0], f.Env, false
				continue

			case fCallCC:
				proc := val
				cont := ev.captureContinuation(rest)
				res, err := ev.beginApply(proc, []value.Value{cont}, rest, f.Span)
				if err != nil {
					return nil, err
				}
				if res.Abandon {
					return res.Value, nil
				}
				if res.Tail {
					k, ctrl, env, hasValue = res.K, res.Ctrl, res.Env, false
					continue
				}
				val, k = res.Value, res.K
				continue

			default:
				return nil, lerrors.New(lerrors.Fatal, "unknown continuation frame kind")
			}
		}

		switch n := ctrl.(type) {
		case nil:
			val, hasValue = value.TheUnspecified, true

		case *ast.Literal:
			val, hasValue = literalToValue(n.Datum), true

		case *ast.Identifier:
			v, ok := env.Lookup(n.Name)
			if !ok {
				return nil, lerrors.Newf(lerrors.UnboundVariable, "unbound variable %q", n.Name).WithSpan(n.Span())
			}
			val, hasValue = v, true

		case *ast.Quote:
			val, hasValue = quoteToValue(n.Datum), true

		case *ast.If:
			k = &Kont{Frame: fIf{Then: n.Then, Else: n.Else, Env: env}, Next: k}
			ctrl = n.Test

		case *ast.Lambda:
			val, hasValue = &value.Procedure{
				Name:    n.Name,
				Params:  n.Formals.Fixed,
				Rest:    n.Formals.Rest,
				HasRest: n.Formals.HasRest,
				Body:    n.Body,
				Env:     env,
			}, true

		case *ast.CaseLambda:
			clauses := make([]value.CaseLambdaClause, len(n.Clauses))
			for i, c := range n.Clauses {
				clauses[i] = value.CaseLambdaClause{Params: c.Formals.Fixed, Rest: c.Formals.Rest, HasRest: c.Formals.HasRest, Body: c.Body}
			}
			val, hasValue = &value.CaseLambda{Clauses: clauses, Env: env}, true

		case *ast.Begin:
			switch len(n.Forms) {
			case 0:
				val, hasValue = value.TheUnspecified, true
			case 1:
				ctrl = n.Forms[0]
			default:
				k = &Kont{Frame: fBegin{Remaining: n.Forms[1:], Env: env}, Next: k}
				ctrl = n.Forms[0]
			}

		case *ast.Definition:
			k = &Kont{Frame: fDefine{Name: n.Name, Env: env}, Next: k}
			ctrl = n.Value

		case *ast.Assignment:
			k = &Kont{Frame: fAssign{Name: n.Name, Env: env}, Next: k}
			ctrl = n.Value

		case *ast.Application:
			k = &Kont{Frame: fOperator{ArgNodes: n.Args, Env: env, Span: n.Span()}, Next: k}
			ctrl = n.Op

		case *ast.CallCC:
			k = &Kont{Frame: fCallCC{Span: n.Span()}, Next: k}
			ctrl = n.Proc

		case *ast.MacroUse:
			if ev.Expander == nil {
				return nil, lerrors.Newf(lerrors.SyntaxError, "unexpanded macro use %q reached the evaluator", n.Keyword).WithSpan(n.Span())
			}
			expanded, err := ev.Expander.Expand(n)
			if err != nil {
				return nil, err
			}
			ctrl = expanded

		default:
			return nil, lerrors.Newf(lerrors.SyntaxError, "unsupported ast node %T", n)
		}
	}
}

// applyResult is beginApply's outcome. Exactly one of three shapes holds:
// a completed Value (Tail=false, Abandon=false); a tail hand-off
// (Tail=true: the caller's loop must continue with Ctrl/Env/K instead of
// recursing); or an abandoned evaluation (Abandon=true: a continuation
// was invoked, so Value is the final answer for whatever captured it —
// the caller must return it immediately rather than feed it into its own
// pending continuation, per spec §4.5 item 1, "abandons the current
// evaluation").
type applyResult struct {
	Value   value.Value
	K       *Kont
	Ctrl    ast.Node
	Env     *environment.Environment
	Tail    bool
	Abandon bool
}

// runMonadic collapses args[0] (expected to be a *effect.Monadic produced
// by an effectful primitive, spec §4.4's "effect lift") at the
// run-monadic boundary: IO runs against ev.IOContext, State threads
// ev.Globals, Maybe/Either collapse per effect.Run's usual rules. A
// non-Monadic argument passes through unchanged, so source can wrap
// run-monadic around a value that may or may not be deferred without
// checking first.
func (ev *Evaluator) runMonadic(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, arityError(RunMonadicName, 1, len(args))
	}
	m, ok := args[0].(*effect.Monadic)
	if !ok {
		return args[0], nil
	}
	if m.Kind == effect.IO && ev.IOContext == nil {
		return nil, lerrors.New(lerrors.IOError, "run-monadic: no IO context bound")
	}
	globals := ev.Globals
	if globals == nil {
		globals = environment.New()
	}
	return effect.Run(m, ev.IOContext, globals)
}

// beginApply dispatches a fully-evaluated operator/operand list (spec
// §4.4 "Procedure application"). span is the call site's source span,
// recorded on the call-stack frame pushed for a named-procedure
// activation (spec §6.3/§7's stack traces).
func (ev *Evaluator) beginApply(op value.Value, args []value.Value, k *Kont, span ast.Span) (applyResult, error) {
	ev.pollSafepoint()
	switch p := op.(type) {
	case *value.Continuation:
		result, err := p.Resume(firstOrUnspecified(args))
		return applyResult{Value: result, Abandon: true}, err

	case *value.Primitive:
		if p.Name == DynamicWindName {
			result, err := ev.dynamicWind(args)
			return applyResult{Value: result, K: k}, err
		}
		if p.Name == RunMonadicName {
			result, err := ev.runMonadic(args)
			return applyResult{Value: result, K: k}, err
		}
		if !p.AcceptsArity(len(args)) {
			return applyResult{}, lerrors.Newf(lerrors.ArityError, "%s: wrong number of arguments (%d given)", p.Name, len(args))
		}
		result, err := p.Impl(args)
		return applyResult{Value: result, K: k}, err

	case *value.Procedure:
		ev.profileCall(p, args)
		callEnv, err := bindFormals(p.Name, p.Params, p.Rest, p.HasRest, args, asEnvironment(p.Env))
		if err != nil {
			return applyResult{}, err
		}
		if err := ev.callStack.Push(procLabel(p.Name), span, k); err != nil {
			return applyResult{}, err
		}
		body, _ := p.Body.([]ast.Node)
		bodyNode, newK := ev.sequenceAsTail(body, k, callEnv)
		return applyResult{K: newK, Ctrl: bodyNode, Env: callEnv, Tail: true}, nil

	case *value.CaseLambda:
		for _, clause := range p.Clauses {
			if arityMatches(clause.Params, clause.HasRest, len(args)) {
				callEnv, err := bindFormals(p.Name, clause.Params, clause.Rest, clause.HasRest, args, asEnvironment(p.Env))
				if err != nil {
					return applyResult{}, err
				}
				if err := ev.callStack.Push(procLabel(p.Name), span, k); err != nil {
					return applyResult{}, err
				}
				body, _ := clause.Body.([]ast.Node)
				bodyNode, newK := ev.sequenceAsTail(body, k, callEnv)
				return applyResult{K: newK, Ctrl: bodyNode, Env: callEnv, Tail: true}, nil
			}
		}
		return applyResult{}, lerrors.Newf(lerrors.ArityError, "case-lambda %s: no clause matches %d arguments", p.Name, len(args))

	default:
		return applyResult{}, lerrors.Newf(lerrors.TypeError, "cannot apply non-procedure value of type %s", op.TypeName())
	}
}

// sequenceAsTail splits a procedure body into "all but last" (pushed as a
// fBegin continuation frame) and "last" (evaluated directly in tail
// position), mirroring Begin's own tail treatment.
func (ev *Evaluator) sequenceAsTail(body []ast.Node, k *Kont, env *environment.Environment) (ast.Node, *Kont) {
	if len(body) == 0 {
		return nil, k
	}
	if len(body) == 1 {
		return body[0], k
	}
	return body[0], &Kont{Frame: fBegin{Remaining: body[1:], Env: env}, Next: k}
}

func firstOrUnspecified(args []value.Value) value.Value {
	if len(args) == 0 {
		return value.TheUnspecified
	}
	return args[0]
}

func arityMatches(params []string, hasRest bool, n int) bool {
	if hasRest {
		return n >= len(params)
	}
	return n == len(params)
}

// bindFormals constructs the child environment for a procedure call,
// binding fixed positional parameters and, if declared, a rest parameter
// to the remaining arguments as a list (spec §4.4 item 2).
func bindFormals(name string, params []string, rest string, hasRest bool, args []value.Value, outer *environment.Environment) (*environment.Environment, error) {
	if !arityMatches(params, hasRest, len(args)) {
		return nil, lerrors.Newf(lerrors.ArityError, "%s: wrong number of arguments (%d given, %d expected)", procLabel(name), len(args), len(params))
	}
	env := environment.NewEnclosed(outer)
	for i, pname := range params {
		env.Define(pname, args[i])
	}
	if hasRest {
		env.Define(rest, value.ListFromSlice(args[len(params):]))
	}
	return env, nil
}

func arityError(name string, expected, got int) error {
	return lerrors.Newf(lerrors.ArityError, "%s: expected %d arguments, got %d", name, expected, got)
}

func procLabel(name string) string {
	if name == "" {
		return "#[procedure]"
	}
	return name
}

// asEnvironment narrows the value.Environment interface back to the
// concrete *environment.Environment the eval package needs for NewEnclosed.
// Procedures constructed by this package's own Eval always carry a
// concrete *environment.Environment; this function exists so the
// interface-typed field can still be used here without eval importing
// the concrete type twice.
func asEnvironment(env value.Environment) *environment.Environment {
	concrete, ok := env.(*environment.Environment)
	if !ok {
		return environment.New()
	}
	return concrete
}

// captureContinuation wraps a Kont as a full-power continuation value
// (spec §4.5): invoking it re-runs the driver loop starting from that
// Kont, which may happen any number of times since Kont is immutable
// data, not a live Go stack frame.
func (ev *Evaluator) captureContinuation(k *Kont) *value.Continuation {
	id := uuid.New().String()
	capturedWinds := ev.winds
	return &value.Continuation{
		Id: id,
		Resume: func(v value.Value) (value.Value, error) {
			if err := ev.transitionWinds(capturedWinds); err != nil {
				return nil, err
			}
			return ev.resume(k, v)
		},
	}
}

// applySync applies proc to args and runs it to completion before
// returning, used by host code (dynamic-wind's before/after thunks) that
// needs a synchronous call rather than a tail hand-off.
func (ev *Evaluator) applySync(proc value.Value, args []value.Value) (value.Value, error) {
	res, err := ev.beginApply(proc, args, nil, ast.Span{})
	if err != nil {
		return nil, err
	}
	if res.Tail {
		return ev.run(res.Ctrl, res.Env, res.K)
	}
	// res.Abandon and the plain-completion case both resolve to a final
	// value here: a continuation invoked from inside proc is already fully
	// resolved (its Resume ran the rest of that computation to completion),
	// so there is nothing left for this synchronous call to feed forward.
	return res.Value, nil
}
