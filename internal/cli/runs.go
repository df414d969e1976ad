package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/pkg/model"
)

func newRunsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "Run history database")

	cmd.AddCommand(newRunsListCmd(&dbPath), newRunsShowCmd(&dbPath), newRunsDeleteCmd(&dbPath))
	return cmd
}

func newRunsListCmd(dbPath *string) *cobra.Command {
	var policy string
	opts := model.DefaultListOptions()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policy != "" {
				p, err := model.ParsePolicy(policy)
				if err != nil {
					return err
				}
				opts.Policy = p
			}
			st, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, total, err := st.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPOLICY\tPROCESSES\tTICKS\tSEED\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
					r.ID, r.Params.Policy, r.Processes, humanize.Comma(r.TotalTicks),
					r.Params.Seed, humanize.Time(r.CreatedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(runs) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "Only runs of this policy")
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum number of runs")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Skip this many runs")
	return cmd
}

func newRunsShowCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show a recorded run with per-process statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			return printRun(cmd, run)
		},
	}
}

func newRunsDeleteCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run_id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s deleted\n", args[0])
			return nil
		},
	}
}

// printRun writes the parameters, per-process table and summary of run.
func printRun(cmd *cobra.Command, run *model.Run) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "Policy:     %s\n", run.Params.Policy.Title())
	fmt.Fprintf(out, "Seed:       %d\n", run.Params.Seed)
	fmt.Fprintf(out, "I/O chance: 1/%d request, 1/%d completion\n", run.Params.IORequestChance, run.Params.IOCompletionChance)
	fmt.Fprintf(out, "Timeslices: %v\n", run.Params.Timeslices)
	fmt.Fprintf(out, "Ticks:      %s\n\n", humanize.Comma(run.TotalTicks))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PID\tARRIVAL\tCPU\tREADY\tI/O\tCOMPLETION\tTURNAROUND\t")
	for _, s := range run.Stats {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			s.ProcessID, s.Arrival, s.CPUTime, s.ReadyTime, s.IOTime, s.Completion, s.Turnaround())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return report.WriteComparison(out, []report.Summary{report.SummarizeRun(run)})
}
