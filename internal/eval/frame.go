package eval

import (
	"github.com/lambdust-scheme/lambdust/internal/ast"
	"github.com/lambdust-scheme/lambdust/internal/environment"
	"github.com/lambdust-scheme/lambdust/internal/value"
)

// Frame is one pending unit of work in the current continuation. Frames
// are immutable data (spec §4.5: "store the stack as an explicit sequence
// of evaluation frames"); a Kont is a persistent singly-linked list of
// them, so capturing the current continuation is a pointer copy (O(1))
// and resuming a captured continuation from anywhere is just swapping the
// driver loop's Kont to the stored one.
type Frame interface{ frame() }

// Kont is the explicit, persistent continuation: a frame plus the rest of
// the computation. A nil *Kont means "return to whoever called Run".
type Kont struct {
	Frame Frame
	Next  *Kont
}

type fIf struct {
	Then, Else ast.Node
	Env        *environment.Environment
}

func (fIf) frame() {}

type fBegin struct {
	Remaining []ast.Node
	Env       *environment.Environment
}

func (fBegin) frame() {}

type fDefine struct {
	Name string
	Env  *environment.Environment
}

func (fDefine) frame() {}

type fAssign struct {
	Name string
	Env  *environment.Environment
}

func (fAssign) frame() {}

// fOperator is pushed while the operator position of an Application is
// being evaluated; once it resolves to a Value, operand evaluation begins.
// Span is the Application's own span, carried through to beginApply for
// the call-stack trace (spec §6.3/§7).
type fOperator struct {
	ArgNodes []ast.Node
	Env      *environment.Environment
	Span     ast.Span
}

func (fOperator) frame() {}

// fArgs accumulates evaluated operands left-to-right (spec §4.4).
type fArgs struct {
	Op      value.Value
	Pending []ast.Node
	Done    []value.Value
	Env     *environment.Environment
	Span    ast.Span
}

func (fArgs) frame() {}

// fCallCC is pushed while CallCC's operand (the receiver procedure) is
// being evaluated; once resolved, the captured continuation (Next) is
// passed to it.
type fCallCC struct {
	Span ast.Span
}

func (fCallCC) frame() {}
