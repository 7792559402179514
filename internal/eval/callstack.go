package eval

import (
	"github.com/lambdust-scheme/lambdust/internal/ast"
	lerrors "github.com/lambdust-scheme/lambdust/internal/errors"
)

// callFrame is one live procedure activation. returnTo is the
// continuation the call will eventually deliver its result to — pointer
// identity against a Kont the driver loop is about to satisfy is what
// tells PopReturnsTo that frame is done.
type callFrame struct {
	name     string
	span     ast.Span
	returnTo *Kont
}

// CallStack tracks named procedure activations for diagnostics (error
// messages, `current-stack-trace`), independent of the Kont continuation
// chain that drives control flow. Adapted from the teacher's
// runtime.CallStack (push/pop/current/depth over a bounded slice), ported
// onto this module's own errors.StackFrame/StackTrace instead of the
// teacher's lexer.Position.
//
// A tail call and a non-tail call both go through Push, distinguished only
// by whether the new call's return point is the same Kont as the
// currently topmost frame's: if so, the new activation *replaces* the old
// one (same return point means the old activation itself was about to
// return there, so it is the same logical stack position) rather than
// growing the stack, matching spec §4.4's O(1) tail-call contract.
type CallStack struct {
	frames   []callFrame
	maxDepth int
}

// NewCallStack creates an empty call stack bounded to maxDepth activations
// (spec §6.5 `error_propagator.stack_trace_max_depth`, reused here as the
// evaluator's own recursion guard for named-procedure activations).
func NewCallStack(maxDepth int) *CallStack {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &CallStack{maxDepth: maxDepth}
}

// Push records entry into procName at span, returning to returnTo. It
// fails with a resource-exhausted condition if doing so would grow a
// non-tail stack past the configured depth.
func (c *CallStack) Push(procName string, span ast.Span, returnTo *Kont) error {
	if n := len(c.frames); n > 0 && c.frames[n-1].returnTo == returnTo {
		c.frames[n-1] = callFrame{name: procName, span: span, returnTo: returnTo}
		return nil
	}
	if len(c.frames) >= c.maxDepth {
		return lerrors.Newf(lerrors.ResourceExhausted, "call stack exceeded max depth (%d)", c.maxDepth).WithSpan(span)
	}
	c.frames = append(c.frames, callFrame{name: procName, span: span, returnTo: returnTo})
	return nil
}

// PopReturnsTo pops the topmost frame if it was waiting to return to k —
// called just before the driver loop delivers a value to k, so a
// completed activation leaves the stack exactly when control actually
// reaches its return point.
func (c *CallStack) PopReturnsTo(k *Kont) {
	if n := len(c.frames); n > 0 && c.frames[n-1].returnTo == k {
		c.frames = c.frames[:n-1]
	}
}

// Current returns the most recent activation's procedure name, or "" at
// the top level.
func (c *CallStack) Current() string {
	if len(c.frames) == 0 {
		return ""
	}
	return c.frames[len(c.frames)-1].name
}

// Depth returns the number of live activations.
func (c *CallStack) Depth() int { return len(c.frames) }

// Trace returns a snapshot of the stack trace for error reporting.
func (c *CallStack) Trace() lerrors.StackTrace {
	out := make(lerrors.StackTrace, len(c.frames))
	for i, f := range c.frames {
		out[i] = lerrors.StackFrame{ProcName: f.name, Span: f.span}
	}
	return out
}
