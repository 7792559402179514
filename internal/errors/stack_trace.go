package errors

import (
	"fmt"
	"strings"

	"github.com/lambdust-scheme/lambdust/internal/ast"
)

// StackFrame is a single frame in a call stack: the procedure being
// executed and its call-site location.
type StackFrame struct {
	ProcName string
	Span     ast.Span
}

// String renders "procName (file:line:column)", or just procName when the
// frame carries no source span.
func (sf StackFrame) String() string {
	if sf.Span == (ast.Span{}) {
		return sf.ProcName
	}
	return fmt.Sprintf("%s (%s)", sf.ProcName, sf.Span)
}

// StackTrace is a complete call stack, oldest frame first.
type StackTrace []StackFrame

// String renders the trace most-recent-frame-first, one per line.
func (st StackTrace) String() string {
	if len(st) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(st) - 1; i >= 0; i-- {
		sb.WriteString(st[i].String())
		if i > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Top returns the most recent frame, or nil if the trace is empty.
func (st StackTrace) Top() *StackFrame {
	if len(st) == 0 {
		return nil
	}
	return &st[len(st)-1]
}

// Depth returns the number of frames.
func (st StackTrace) Depth() int { return len(st) }
