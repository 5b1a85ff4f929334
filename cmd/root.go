// Package cmd implements the mcpress-chatbot command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mcpress/chatbot/internal/log"
)

// Version is injected at build time via ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mcpress-chatbot",
	Short: "MC Press chatbot backend",
	Long: `Backend service for the MC Press document chatbot: PDF ingestion,
semantic search, and the author catalog with duplicate merging and
CSV reconciliation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{Level: level}))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
