// Package errors implements the error object of spec §6.3: a classified,
// span-carrying condition that flows from the evaluator through try/catch
// and, uncaught, to the error propagation coordinator.
package errors

import (
	"fmt"

	"github.com/lambdust-scheme/lambdust/internal/ast"
)

// Kind enumerates the error taxonomy of spec §6.3.
type Kind int

const (
	SyntaxError Kind = iota
	TypeError
	ArityError
	UnboundVariable
	ArithmeticError
	BoundsError
	RuntimeError
	IOError
	Timeout
	ResourceExhausted
	OutOfMemory
	Fatal
)

func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "syntax-error"
	case TypeError:
		return "type-error"
	case ArityError:
		return "arity-error"
	case UnboundVariable:
		return "unbound-variable"
	case ArithmeticError:
		return "arithmetic-error"
	case BoundsError:
		return "bounds-error"
	case RuntimeError:
		return "runtime-error"
	case IOError:
		return "io-error"
	case Timeout:
		return "timeout"
	case ResourceExhausted:
		return "resource-exhausted"
	case OutOfMemory:
		return "out-of-memory"
	case Fatal:
		return "fatal"
	default:
		return "unknown-error"
	}
}

// Error is a classified, raisable condition. It satisfies the standard
// error interface so it composes with fmt.Errorf/errors.Is chains.
type Error struct {
	Kind    Kind
	Message string
	Span    *ast.Span
	Context map[string]string
}

// New creates an Error with no span and no context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSpan returns a copy of e with Span set.
func (e *Error) WithSpan(span ast.Span) *Error {
	cp := *e
	cp.Span = &span
	return &cp
}

// WithContext returns a copy of e with one context key/value added.
func (e *Error) WithContext(key, value string) *Error {
	cp := *e
	cp.Context = make(map[string]string, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is allows errors.Is(err, errors.New(TypeError, "")) to match by Kind only,
// matching the stdlib errors.Is convention of target-sentinel comparison.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
