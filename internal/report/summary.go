package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/me/cpusim/pkg/model"
)

// Summary condenses one run into the figures used to compare policies.
type Summary struct {
	Policy        model.Policy `json:"policy"`
	Processes     int          `json:"processes"`
	Makespan      int64        `json:"makespan"`
	AvgTurnaround float64      `json:"avg_turnaround"`
	AvgReady      float64      `json:"avg_ready"`
	AvgIO         float64      `json:"avg_io"`
	// Throughput is completed processes per 1000 ticks.
	Throughput float64 `json:"throughput"`
}

// Summarize computes the averages of stats. totalTicks is the makespan.
func Summarize(policy model.Policy, totalTicks int64, stats []model.ProcessStats) Summary {
	s := Summary{Policy: policy, Processes: len(stats), Makespan: totalTicks}
	if len(stats) == 0 {
		return s
	}
	var turnaround, ready, ioWait int64
	for _, p := range stats {
		turnaround += p.Turnaround()
		ready += p.ReadyTime
		ioWait += p.IOTime
	}
	n := float64(len(stats))
	s.AvgTurnaround = float64(turnaround) / n
	s.AvgReady = float64(ready) / n
	s.AvgIO = float64(ioWait) / n
	if totalTicks > 0 {
		s.Throughput = n * 1000 / float64(totalTicks)
	}
	return s
}

// SummarizeRun summarizes a stored run.
func SummarizeRun(run *model.Run) Summary {
	return Summarize(run.Params.Policy, run.TotalTicks, run.Stats)
}

// WriteComparison prints summaries side by side, one column per policy.
func WriteComparison(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	row := func(label string, cell func(Summary) string) {
		fmt.Fprint(tw, label, "\t")
		for _, s := range summaries {
			fmt.Fprint(tw, cell(s), "\t")
		}
		fmt.Fprintln(tw)
	}

	row("", func(s Summary) string { return s.Policy.Title() })
	row("processes", func(s Summary) string { return humanize.Comma(int64(s.Processes)) })
	row("makespan (ticks)", func(s Summary) string { return humanize.Comma(s.Makespan) })
	row("avg turnaround", func(s Summary) string { return humanize.CommafWithDigits(s.AvgTurnaround, 2) })
	row("avg ready wait", func(s Summary) string { return humanize.CommafWithDigits(s.AvgReady, 2) })
	row("avg i/o wait", func(s Summary) string { return humanize.CommafWithDigits(s.AvgIO, 2) })
	row("throughput /1k ticks", func(s Summary) string { return humanize.CommafWithDigits(s.Throughput, 3) })

	return tw.Flush()
}
