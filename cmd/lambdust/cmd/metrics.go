package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lambdust-scheme/lambdust/internal/config"
	"github.com/lambdust-scheme/lambdust/pkg/lambdust"
)

var (
	metricsCalls int
	metricsJSON  bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Drive the built-in factorial program repeatedly and report JIT tier metrics",
	Long: `Metrics calls the built-in factorial procedure the requested number of
times and prints the JIT tier controller's performance report (spec §4.9):
tier-promotion counts, compilation-cache hit rate, and execution-time
percentiles, as either a human-readable report or JSON.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().IntVar(&metricsCalls, "calls", 1500, "number of times to invoke the built-in factorial procedure")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "print the report as JSON instead of text")
}

func runMetrics(_ *cobra.Command, _ []string) error {
	rt := lambdust.New(config.Default(), nil)
	defer rt.Close()

	proc, err := rt.Run(demoFactorial())
	if err != nil {
		exitWithError("defining fact-iter: %v", err)
	}
	rt.Globals.Define("fact-iter", proc)

	call := demoFactorialCall(10)
	for i := 0; i < metricsCalls; i++ {
		if _, err := rt.Run(call); err != nil {
			exitWithError("call %d: %v", i, err)
		}
	}

	if metricsJSON {
		doc, err := rt.MetricsReportJSON()
		if err != nil {
			exitWithError("rendering JSON report: %v", err)
		}
		fmt.Fprintln(os.Stdout, doc)
		return nil
	}

	fmt.Fprintln(os.Stdout, rt.MetricsReport())
	return nil
}
