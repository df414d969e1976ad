// Package cli implements the cpusim command line.
package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultServer returns the default server URL, checking CPUSIM_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("CPUSIM_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// defaultDBPath is the run history database shared by the CLI and the server.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "runs.db"
	}
	return filepath.Join(home, ".cpusim", "runs.db")
}

// NewRootCmd creates the root cobra command for the cpusim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cpusim",
		Short: "cpusim: single-CPU scheduling simulator",
		Long: `cpusim replays a workload of processes through a simulated CPU under one
of three preemptive policies (non-aggressive and aggressive multilevel
feedback, and shortest-job-first) and reports per-process statistics.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewWithWriter(logging.Options{Level: flagLogLevel, Format: flagLogFormat}, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newCompareCmd(),
		newRunsCmd(),
		newSubmitCmd(),
	)

	return root
}
