// Package effect implements the monadic effect surface of spec §4.4: an
// identifier-headed application whose head names a declared effectful
// operation (read-line, display, get-state, set-state!, just, nothing,
// error, try, ...) produces a Monadic value tagged with its monad (IO,
// State, Maybe, Either) instead of executing eagerly. Run collapses a
// Monadic at the evaluator boundary: IO is executed through an IOContext
// (implemented by internal/concurrency/io), State threads the global
// environment, Maybe/Either collapse to a plain Value or a propagated
// error.
//
// Structurally informed by hayabusa-cloud-kont's Bind/Map/Then combinator
// shapes (monad.go, effect.go) — that package's Cont[R, A] is a
// Go-generic, multi-shot algebraic-effect continuation; this package has
// no such generality to reach for, since every Scheme value already
// shares the single value.Value type, so Bind/Map/Then here close over
// value.Value directly rather than over a type parameter. The shape
// (sequencing by running the first action and feeding its result to a
// continuation) is reused; no kont code is imported.
package effect

import (
	"github.com/lambdust-scheme/lambdust/internal/environment"
	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Kind names which of spec §4.4's four monads a Monadic value carries.
type Kind int

const (
	IO Kind = iota
	State
	Maybe
	Either
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case State:
		return "state"
	case Maybe:
		return "maybe"
	case Either:
		return "either"
	default:
		return "unknown-monad"
	}
}

// IOContext is the capability a Monadic IO action runs against; satisfied
// by internal/concurrency/io's ThreadIOContext. Declared here, not there, so
// this package stays free of a dependency on the concurrency runtime.
type IOContext interface {
	Display(s string) error
	ReadLine() (line string, ok bool, err error)
}

// Monadic is a deferred effectful computation tagged with its monad (spec
// §4.4 "effect lift"). It implements value.Value so it flows through the
// evaluator like any other datum until an explicit Run/run-monadic step
// collapses it.
type Monadic struct {
	Kind Kind

	// IO: run performs the action against an IOContext.
	ioRun func(IOContext) (value.Value, error)

	// State: run transforms the threaded environment.
	stateRun func(*environment.Environment) (value.Value, error)

	// Maybe: isNothing distinguishes Nothing from Just(just).
	just      value.Value
	isNothing bool

	// Either: exactly one of right/left is meaningful, selected by isLeft.
	right  value.Value
	left   error
	isLeft bool
}

func (*Monadic) TypeName() string { return "monadic" }

func (m *Monadic) String() string {
	switch m.Kind {
	case IO:
		return "#[monadic io]"
	case State:
		return "#[monadic state]"
	case Maybe:
		if m.isNothing {
			return "#[monadic nothing]"
		}
		return "#[monadic just]"
	case Either:
		if m.isLeft {
			return "#[monadic left]"
		}
		return "#[monadic right]"
	default:
		return "#[monadic]"
	}
}

// NewIO lifts a side-effecting action into the IO monad (spec §4.4; the
// action runs only when Run executes it against an IOContext).
func NewIO(run func(IOContext) (value.Value, error)) *Monadic {
	return &Monadic{Kind: IO, ioRun: run}
}

// NewState lifts an environment-threading step into the State monad
// (get-state/set-state!).
func NewState(run func(*environment.Environment) (value.Value, error)) *Monadic {
	return &Monadic{Kind: State, stateRun: run}
}

// Just wraps v as the Maybe monad's present case.
func Just(v value.Value) *Monadic { return &Monadic{Kind: Maybe, just: v} }

// Nothing is the Maybe monad's absent case. Per the spec's open question
// on how Nothing surfaces at the language level, Run collapses it to
// Scheme's '() (value.TheNil) rather than #f, since the original
// implementation's parser_monad.rs models an absent result as an empty
// alternative set — closer in kind to an empty list than to a boolean.
func Nothing() *Monadic { return &Monadic{Kind: Maybe, isNothing: true} }

// Right wraps v as the Either monad's success case.
func Right(v value.Value) *Monadic { return &Monadic{Kind: Either, right: v} }

// Left wraps err as the Either monad's failure case; Run propagates it
// as an ordinary Go error, joining the evaluator's normal error channel.
func Left(err error) *Monadic { return &Monadic{Kind: Either, left: err, isLeft: true} }

// IsNothing reports whether m is the Maybe monad's absent case.
func (m *Monadic) IsNothing() bool { return m.Kind == Maybe && m.isNothing }

// IsLeft reports whether m is the Either monad's failure case.
func (m *Monadic) IsLeft() bool { return m.Kind == Either && m.isLeft }

// Run collapses m at the evaluator boundary (spec §4.4's "run-monadic"
// step): IO actions execute against io; State actions thread env; Maybe's
// Nothing collapses to value.TheNil (see Nothing's doc) and Just unwraps
// to its value; Either's Left propagates as an error and Right unwraps.
func Run(m *Monadic, io IOContext, env *environment.Environment) (value.Value, error) {
	switch m.Kind {
	case IO:
		if m.ioRun == nil {
			return value.TheUnspecified, nil
		}
		return m.ioRun(io)
	case State:
		if m.stateRun == nil {
			return value.TheUnspecified, nil
		}
		return m.stateRun(env)
	case Maybe:
		if m.isNothing {
			return value.TheNil, nil
		}
		return m.just, nil
	case Either:
		if m.isLeft {
			return nil, m.left
		}
		return m.right, nil
	default:
		return nil, lerrors.Newf(lerrors.Fatal, "run-monadic: unknown monad kind %d", m.Kind)
	}
}

// Bind sequences m then f(result) within the same monad (spec §4.4):
// running the combined Monadic runs m, feeds its unwrapped value to f,
// and runs whatever Monadic f produces. Short-circuiting monads (Maybe's
// Nothing, Either's Left) skip f entirely, matching their usual monad
// laws.
func Bind(m *Monadic, f func(value.Value) (*Monadic, error)) *Monadic {
	switch m.Kind {
	case IO:
		return NewIO(func(io IOContext) (value.Value, error) {
			v, err := Run(m, io, nil)
			if err != nil {
				return nil, err
			}
			next, err := f(v)
			if err != nil {
				return nil, err
			}
			return Run(next, io, nil)
		})
	case State:
		return NewState(func(env *environment.Environment) (value.Value, error) {
			v, err := Run(m, nil, env)
			if err != nil {
				return nil, err
			}
			next, err := f(v)
			if err != nil {
				return nil, err
			}
			return Run(next, nil, env)
		})
	case Maybe:
		if m.isNothing {
			return m
		}
		next, err := f(m.just)
		if err != nil {
			return Nothing()
		}
		return next
	case Either:
		if m.isLeft {
			return m
		}
		next, err := f(m.right)
		if err != nil {
			return Left(err)
		}
		return next
	default:
		return m
	}
}

// Map applies a pure transformation to m's eventual result without
// changing its monad, for an f that cannot itself fail or produce a new
// effect. It is implemented through Bind, rewrapping f's result in m's
// monad.
func Map(m *Monadic, f func(value.Value) value.Value) *Monadic {
	return Bind(m, func(v value.Value) (*Monadic, error) {
		return wrapLike(m, f(v)), nil
	})
}

// Then sequences m before n, discarding m's result — used where an
// effect's ordering matters but its value does not (e.g. two displays in
// a row).
func Then(m, n *Monadic) *Monadic {
	return Bind(m, func(value.Value) (*Monadic, error) { return n, nil })
}

func wrapLike(m *Monadic, v value.Value) *Monadic {
	switch m.Kind {
	case IO:
		return NewIO(func(IOContext) (value.Value, error) { return v, nil })
	case State:
		return NewState(func(*environment.Environment) (value.Value, error) { return v, nil })
	case Maybe:
		return Just(v)
	case Either:
		return Right(v)
	default:
		return m
	}
}
