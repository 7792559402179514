package io

import (
	"bufio"
	"context"
	stdio "io"
	"strings"
)

// ThreadIOContext is the console-IO capability bound to one registered
// thread; it satisfies internal/effect's IOContext interface structurally
// (that package declares the interface, not this one, to keep the effect
// monad free of a dependency on the concurrency runtime — see
// internal/effect/monad.go). Every Display/ReadLine call is routed
// through the coordinator's normal Begin/release lock protocol on the
// shared "console" resource, so concurrent output from multiple threads
// interleaves only at operation boundaries rather than mid-write.
type ThreadIOContext struct {
	coord    *Coordinator
	threadID string
	out      stdio.Writer
	in       *bufio.Reader
}

// consoleResource is the single resource name console operations
// coordinate on; every thread's console IO serializes against it.
const consoleResource = "console"

// NewThreadIOContext binds threadID's console IO to out/in, coordinated
// through coord.
func NewThreadIOContext(coord *Coordinator, threadID string, out stdio.Writer, in stdio.Reader) *ThreadIOContext {
	return &ThreadIOContext{coord: coord, threadID: threadID, out: out, in: bufio.NewReader(in)}
}

// Display writes s to the console under the coordinator's write lock.
func (t *ThreadIOContext) Display(s string) error {
	ctx := context.Background()
	_, release, err := t.coord.Begin(ctx, t.threadID, ConsoleOutput, consoleResource, Parameters{Data: []byte(s)})
	if err != nil {
		return err
	}
	_, writeErr := stdio.WriteString(t.out, s)
	release(writeErr)
	return writeErr
}

// ReadLine reads one newline-terminated line from the console under the
// coordinator's read lock. ok is false at end of input with no error.
func (t *ThreadIOContext) ReadLine() (line string, ok bool, err error) {
	ctx := context.Background()
	_, release, err := t.coord.Begin(ctx, t.threadID, ConsoleInput, consoleResource, Parameters{})
	if err != nil {
		return "", false, err
	}

	raw, readErr := t.in.ReadString('\n')
	if readErr != nil && readErr != stdio.EOF {
		release(readErr)
		return "", false, readErr
	}
	release(nil)

	raw = strings.TrimRight(raw, "\n")
	raw = strings.TrimRight(raw, "\r")
	if raw == "" && readErr == stdio.EOF {
		return "", false, nil
	}
	return raw, true, nil
}
