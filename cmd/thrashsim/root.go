package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thrashsim",
		Short: "Replay access patterns against the UVM thrashing engine.",
		Long: `thrashsim drives the thrashing engine with a simulated clock and residency engine. ` +
			`It reports the hints returned for each scenario, and can dump the engine state ` +
			`and its Prometheus metrics.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}
