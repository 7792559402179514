package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lambdust-scheme/lambdust/internal/config"
	"github.com/lambdust-scheme/lambdust/pkg/lambdust"
)

var runN int64

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the built-in factorial smoke-test program",
	Long: `Run drives the Lambdust runtime core over a small built-in
tail-recursive factorial program and displays the result.

Lambdust's core takes a pre-built AST, not source text (parsing is out of
this module's scope); "run" exists to exercise the wired runtime
end-to-end rather than to accept arbitrary scripts.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int64Var(&runN, "n", 10, "compute n! using the built-in tail-recursive factorial")
}

func runDemo(_ *cobra.Command, _ []string) error {
	rt := lambdust.New(config.Default(), nil)
	defer rt.Close()
	rt.BindConsole(os.Stdout, os.Stdin)

	proc, err := rt.Run(demoFactorial())
	if err != nil {
		exitWithError("defining fact-iter: %v", err)
	}
	rt.Globals.Define("fact-iter", proc)

	result, err := rt.Run(demoFactorialCall(runN))
	if err != nil {
		exitWithError("evaluating (fact-iter %d 1): %v", runN, err)
	}
	fmt.Fprintf(os.Stdout, "%d! = %s\n", runN, result)

	if verbose {
		fmt.Fprintln(os.Stderr, rt.MetricsReport())
	}
	return nil
}
