package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "irtsim",
		Short: "irtsim - simulate and recover item-response-theory parameters",
		Long: `irtsim simulates binary response data under a one-parameter logistic
IRT model and fits competing estimators to recover the latent
parameters.

It provides tools to run single simulate-and-fit passes, replication
studies for bias/variance inspection, and study-file scaffolding and
validation.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newSimulateCommand())
	cmd.AddCommand(newReplicateCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
