package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lambdust",
	Short: "Lambdust Scheme runtime smoke-test harness",
	Long: `lambdust drives the Lambdust Scheme runtime core: a thread-safe
environment, macro expander, CEK-style evaluator, generational GC, and a
JIT tier controller, wired together behind pkg/lambdust.

This CLI is a thin smoke-test harness around the runtime, not a REPL or
source-level interpreter front end — building a Scheme reader/parser is
out of this module's scope. "run" executes a small built-in demonstration
program; "metrics" drives it repeatedly and reports the JIT controller's
tier-promotion behavior.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
