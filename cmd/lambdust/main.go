// Command lambdust is a thin smoke-test harness over pkg/lambdust: the
// REPL/source-level CLI proper is out of this module's scope (spec §1),
// so this binary drives a small built-in demonstration program rather
// than reading user-supplied Scheme source.
package main

import (
	"fmt"
	"os"

	"github.com/lambdust-scheme/lambdust/cmd/lambdust/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
