package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var f simFlags
	var serverURL string

	cmd := &cobra.Command{
		Use:   "submit [workload]",
		Short: "Run a workload on a cpusim server",
		Long: `Send the workload file and simulation parameters to a running cpusim
server, which simulates it, records the run and returns the statistics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			if err := workloadPath(&cfg, args); err != nil {
				return err
			}
			data, err := os.ReadFile(cfg.Workload)
			if err != nil {
				return fmt.Errorf("read workload: %w", err)
			}

			req := model.CreateRunRequest{
				Workload:           string(data),
				Policy:             cfg.Policy,
				Seed:               &cfg.Seed,
				IORequestChance:    cfg.IORequestChance,
				IOCompletionChance: cfg.IOCompletionChance,
				TimesliceExpr:      cfg.TimesliceExpr,
			}
			if cfg.TimesliceExpr == "" {
				req.Timeslices = cfg.Timeslices
			}

			client := NewClient(serverURL, logger)
			logger.Info("submitting workload", "server", client.BaseURL, "path", cfg.Workload)
			run, err := client.CreateRun(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run recorded: %s\n\n", run.ID)
			return report.WriteComparison(out, []report.Summary{run.Summary})
		},
	}

	addSimFlags(cmd, &f, true)
	cmd.Flags().StringVar(&serverURL, "server", defaultServer(), "cpusim server URL (or CPUSIM_SERVER env)")
	return cmd
}
