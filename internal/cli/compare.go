package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/internal/runner"
	"github.com/me/cpusim/internal/workload"
)

func newCompareCmd() *cobra.Command {
	var f simFlags
	var outDir string

	cmd := &cobra.Command{
		Use:   "compare [workload]",
		Short: "Simulate a workload under every policy and compare",
		Args:  cobra.MaximumNArgs(1),
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

			runs, err := runner.New(nil, logger).Compare(cmd.Context(), ec, entries)
			if err != nil {
				return err
			}

			summaries := make([]report.Summary, 0, len(runs))
			for _, run := range runs {
				summaries = append(summaries, report.SummarizeRun(run))
				if outDir == "" {
					continue
				}
				path, err := report.WriteFile(outDir, run.Params.Policy, run.Stats)
				if err != nil {
					return err
				}
				logger.Info("report written", "path", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workload %s, %d processes, seed %d\n\n", cfg.Workload, len(entries), cfg.Seed)
			return report.WriteComparison(cmd.OutOrStdout(), summaries)
		},
	}

	addSimFlags(cmd, &f, false)
	cmd.Flags().StringVar(&outDir, "outdir", "", "Also write one statistics CSV per policy here")
	return cmd
}
