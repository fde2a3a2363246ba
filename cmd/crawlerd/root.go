// Package main provides the entry point for the crawlerd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for crawlerd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlerd",
		Short: "Web crawler with adaptive concurrency and per-domain rate limiting",
		Long: `crawlerd crawls websites breadth-first and extracts their content.

It follows internal links up to a configurable depth, retries transient
failures with exponential backoff, adapts its concurrency limit to the
observed success rate, and keeps per-domain request rates within a
sliding-window budget. Results are stored locally and can be rendered as
JSON, Markdown, or plain text reports.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewTasksCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
