package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/internal/runner"
	"github.com/me/cpusim/internal/store"
	"github.com/me/cpusim/internal/workload"
)

func newRunCmd() *cobra.Command {
	var f simFlags

	cmd := &cobra.Command{
		Use:   "run [workload]",
		Short: "Simulate a workload under one policy",
		Long: `Simulate the workload file (one processID:arrival:service:priority record
per line) under the selected policy. Exit records are printed as they occur,
every tick with -v. The per-process statistics are written to
Statistics_<Policy>.csv in --outdir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			if err := workloadPath(&cfg, args); err != nil {
				return err
			}
			ec, err := cfg.Engine()
			if err != nil {
				return err
			}
			entries, err := workload.Load(cfg.Workload)
			if err != nil {
				return err
			}

			var st store.Store
			if cfg.DBPath != "" {
				s, err := openStore(cmd.Context(), cfg.DBPath)
				if err != nil {
					return err
				}
				defer s.Close()
				st = s
			}

			out := cmd.OutOrStdout()
			trace := report.NewTraceLogger(out, cfg.Verbose)
			run, err := runner.New(st, logger).Run(cmd.Context(), ec, entries, trace)
			if err != nil {
				return err
			}
			if err := trace.Done(); err != nil {
				return fmt.Errorf("write trace: %w", err)
			}

			path, err := report.WriteFile(cfg.OutDir, ec.Policy, run.Stats)
			if err != nil {
				return err
			}
			logger.Info("report written", "path", path, "ticks", run.TotalTicks)
			if st != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Run recorded: %s\n", run.ID)
			}
			return nil
		},
	}

	addSimFlags(cmd, &f, true)
	cmd.Flags().BoolVarP(&f.cfg.Verbose, "verbose", "v", false, "Print every tick, not only exits")
	cmd.Flags().StringVar(&f.cfg.OutDir, "outdir", ".", "Directory for the statistics CSV")
	cmd.Flags().StringVar(&f.cfg.DBPath, "db", "", "Record the run in this SQLite database")
	return cmd
}

// openStore opens and migrates the run history database, creating its
// directory when needed.
func openStore(ctx context.Context, path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return st, nil
}
