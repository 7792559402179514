// Package primitive implements the primitive-procedure contract of spec
// §6.2: host-implemented procedures installed into the global environment
// before evaluation begins, each a *value.Primitive with a declared arity
// and effect set. This package supplies the core arithmetic/list/predicate
// primitives; the IO-effectful ones (display, read-line) defer to
// internal/effect's IO monad instead of running eagerly — spec §4.4's
// effect lift — and only take effect once `run-monadic` collapses them
// against a bound internal/concurrency/io context.
package primitive

import (
	"fmt"

	"github.com/lambdust-scheme/lambdust/internal/effect"
	"github.com/lambdust-scheme/lambdust/internal/environment"
	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/eval"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Define installs name as a pure primitive with the given arity bounds.
func define(env *environment.Environment, name string, min, max int, impl func([]value.Value) (value.Value, error)) {
	env.Define(name, &value.Primitive{Name: name, MinArity: min, MaxArity: max, Effects: map[value.Effect]bool{value.EffectPure: true}, Impl: impl})
}

// RegisterCore installs the arithmetic, pair/list, predicate,
// dynamic-wind, and run-monadic primitives into env (spec §6.2, §4.1,
// §4.4).
func RegisterCore(env *environment.Environment) {
	registerArithmetic(env)
	registerPairs(env)
	registerPredicates(env)
	registerDynamicWind(env)
	registerRunMonadic(env)
}

// RegisterIO installs the IO-effectful display and read-line primitives
// (spec §6.2's IO effect, §4.4's effect lift, §4.6's IO coordinator).
// Neither primitive performs IO eagerly: each produces an *effect.Monadic
// IO action (spec §4.4) that only runs once `run-monadic`
// (eval.RunMonadicName) collapses it against the evaluator's bound
// effect.IOContext — installed by pkg/lambdust.Runtime.BindConsole via
// Evaluator.IOContext, e.g. a concurrency/io.ThreadIOContext. Calling
// display/read-line before an IOContext is bound is a programmer error
// that surfaces as an IOError once run-monadic actually tries to collapse
// the action, not at construction time.
func RegisterIO(env *environment.Environment) {
	env.Define("display", &value.Primitive{
		Name: "display", MinArity: 1, MaxArity: 1,
		Effects: map[value.Effect]bool{value.EffectIO: true},
		Impl: func(a []value.Value) (value.Value, error) {
			text := Display(a[0])
			return effect.NewIO(func(ctx effect.IOContext) (value.Value, error) {
				if ctx == nil {
					return nil, lerrors.New(lerrors.IOError, "display: run-monadic has no bound IO context")
				}
				if err := ctx.Display(text); err != nil {
					return nil, lerrors.Newf(lerrors.IOError, "display: %v", err)
				}
				return value.TheUnspecified, nil
			}), nil
		},
	})
	env.Define("read-line", &value.Primitive{
		Name: "read-line", MinArity: 0, MaxArity: 0,
		Effects: map[value.Effect]bool{value.EffectIO: true},
		Impl: func([]value.Value) (value.Value, error) {
			return effect.NewIO(func(ctx effect.IOContext) (value.Value, error) {
				if ctx == nil {
					return nil, lerrors.New(lerrors.IOError, "read-line: run-monadic has no bound IO context")
				}
				line, ok, err := ctx.ReadLine()
				if err != nil {
					return nil, lerrors.Newf(lerrors.IOError, "read-line: %v", err)
				}
				if !ok {
					return value.Bool(false), nil
				}
				return value.NewString(line), nil
			}), nil
		},
	})
}

func registerDynamicWind(env *environment.Environment) {
	// beginApply intercepts calls to a primitive literally named
	// "dynamic-wind" (eval.DynamicWindName) to give it evaluator access;
	// this registration only exists so `(dynamic-wind ...)` resolves to
	// *some* procedure value and reports the right arity/name on error.
	env.Define(eval.DynamicWindName, &value.Primitive{
		Name:     eval.DynamicWindName,
		MinArity: 3,
		MaxArity: 3,
		Effects:  map[value.Effect]bool{value.EffectIO: true},
		Impl: func([]value.Value) (value.Value, error) {
			return nil, lerrors.New(lerrors.Fatal, "dynamic-wind must be dispatched by the evaluator, not called directly")
		},
	})
}

func registerRunMonadic(env *environment.Environment) {
	// beginApply intercepts calls to a primitive literally named
	// "run-monadic" (eval.RunMonadicName) to collapse a *effect.Monadic
	// against the evaluator's IOContext/Globals (spec §4.4); this
	// registration only exists so `(run-monadic ...)` resolves to *some*
	// procedure value and reports the right arity/name on error.
	env.Define(eval.RunMonadicName, &value.Primitive{
		Name:     eval.RunMonadicName,
		MinArity: 1,
		MaxArity: 1,
		Effects:  map[value.Effect]bool{value.EffectIO: true},
		Impl: func([]value.Value) (value.Value, error) {
			return nil, lerrors.New(lerrors.Fatal, "run-monadic must be dispatched by the evaluator, not called directly")
		},
	})
}

func registerPairs(env *environment.Environment) {
	define(env, "cons", 2, 2, func(a []value.Value) (value.Value, error) { return value.Cons(a[0], a[1]), nil })
	define(env, "car", 1, 1, func(a []value.Value) (value.Value, error) { return value.Car(a[0]) })
	define(env, "cdr", 1, 1, func(a []value.Value) (value.Value, error) { return value.Cdr(a[0]) })
	define(env, "list", 0, -1, func(a []value.Value) (value.Value, error) { return value.ListFromSlice(a), nil })
	define(env, "length", 1, 1, func(a []value.Value) (value.Value, error) {
		n, err := value.ListLength(a[0])
		if err != nil {
			return nil, err
		}
		return value.NewInteger(int64(n)), nil
	})
	define(env, "set-car!", 2, 2, func(a []value.Value) (value.Value, error) {
		if err := value.SetCar(a[0], a[1]); err != nil {
			return nil, err
		}
		return value.TheUnspecified, nil
	})
	define(env, "set-cdr!", 2, 2, func(a []value.Value) (value.Value, error) {
		if err := value.SetCdr(a[0], a[1]); err != nil {
			return nil, err
		}
		return value.TheUnspecified, nil
	})
}

func registerPredicates(env *environment.Environment) {
	define(env, "eq?", 2, 2, func(a []value.Value) (value.Value, error) { return value.Bool(value.Eq(a[0], a[1])), nil })
	define(env, "eqv?", 2, 2, func(a []value.Value) (value.Value, error) { return value.Bool(value.Eqv(a[0], a[1])), nil })
	define(env, "equal?", 2, 2, func(a []value.Value) (value.Value, error) { return value.Bool(value.Equal(a[0], a[1])), nil })
	define(env, "not", 1, 1, func(a []value.Value) (value.Value, error) { return value.Bool(!value.IsTruthy(a[0])), nil })
	define(env, "null?", 1, 1, func(a []value.Value) (value.Value, error) {
		_, isNil := a[0].(value.Nil)
		return value.Bool(isNil), nil
	})
	define(env, "pair?", 1, 1, func(a []value.Value) (value.Value, error) {
		switch a[0].(type) {
		case *value.Pair, *value.MutablePair:
			return value.True, nil
		default:
			return value.False, nil
		}
	})
	define(env, "procedure?", 1, 1, func(a []value.Value) (value.Value, error) {
		switch a[0].(type) {
		case *value.Procedure, *value.CaseLambda, *value.Primitive, *value.Continuation:
			return value.True, nil
		default:
			return value.False, nil
		}
	})
}

// registerArithmetic wires +,-,*,/, and = over the numeric tower
// (spec §4.1 exactness/promotion rules live in internal/value/numeric.go;
// this package only folds Add/Sub/Mul/Div left-to-right).
func registerArithmetic(env *environment.Environment) {
	define(env, "+", 0, -1, func(a []value.Value) (value.Value, error) { return fold(a, value.NewInteger(0), value.Add) })
	define(env, "*", 0, -1, func(a []value.Value) (value.Value, error) { return fold(a, value.NewInteger(1), value.Mul) })
	define(env, "-", 1, -1, func(a []value.Value) (value.Value, error) {
		if len(a) == 1 {
			return value.Sub(value.NewInteger(0), a[0])
		}
		return fold(a[1:], a[0], value.Sub)
	})
	define(env, "/", 1, -1, func(a []value.Value) (value.Value, error) {
		if len(a) == 1 {
			return value.Div(value.NewInteger(1), a[0])
		}
		return fold(a[1:], a[0], value.Div)
	})
	define(env, "=", 1, -1, func(a []value.Value) (value.Value, error) { return compareChain(a, value.NumericEqual) })
}

func fold(rest []value.Value, acc value.Value, op func(value.Value, value.Value) (value.Value, error)) (value.Value, error) {
	var err error
	for _, v := range rest {
		acc, err = op(acc, v)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func compareChain(a []value.Value, cmp func(value.Value, value.Value) bool) (value.Value, error) {
	for i := 1; i < len(a); i++ {
		if !cmp(a[i-1], a[i]) {
			return value.False, nil
		}
	}
	return value.True, nil
}

// Display renders v the way `display` would (no quoting of strings); the
// IO-effectful `display` primitive calls it when applied, and the IO action
// it returns writes the rendered text once run-monadic collapses it.
func Display(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return s.Value
	}
	return fmt.Sprint(v.String())
}
