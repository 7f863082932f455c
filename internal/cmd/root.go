// Package cmd implements the simdispatch command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "simdispatch",
	Short: "Dispatch simulation jobs across heterogeneous execution backends",
	Long: `simdispatch runs batches of simulation jobs against a pool of workers:
local processes, session-bound remote hosts, and containers.

A run is described by a YAML manifest naming the workers and the jobs.
Outcomes are aggregated into a ledger; a job only counts as succeeded
when its expected output artifact was verified to exist.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
