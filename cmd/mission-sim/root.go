package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mission-sim",
	Short: "Rescue drone mission simulator",
	Long: `mission-sim drives a rescue drone over a randomly generated site graph.
Tasks are served by priority; every hop sends a Hamming-protected position
report over a noisy channel and may be held up by environmental hazards.

Settings come from an optional scenario file (--config) and MISSION_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(characterizeCmd)
}
