// Package main provides agentctl, a thin command-line entry point for
// manually smoke-testing the agent core against a real LLM provider.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// main is the entry point for the agentctl CLI.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to keep it testable.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentctl",
		Short:        "agentctl drives the agent core from the command line",
		Long:         `agentctl constructs an executor from a config file and runs one mission against it, printing each emitted event as a JSON line. It exists for manual smoke-testing, not as a production gateway.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}
