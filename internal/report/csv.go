package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/me/cpusim/pkg/model"
)

// Header is the first row of every statistics file.
var Header = []string{
	"ProcessID",
	"Arrival Time",
	"Total CPU Time",
	"Time spent in Ready Queue",
	"Time spent in I/O pool",
	"Completion Time",
	"Turnaround Time",
}

// FileName returns the statistics file name for policy.
func FileName(policy model.Policy) string {
	return "Statistics_" + policy.Title() + ".csv"
}

// WriteCSV writes one row per process, in the order given.
func WriteCSV(w *csv.Writer, stats []model.ProcessStats) error {
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, s := range stats {
		row := []string{
			strconv.Itoa(s.ProcessID),
			strconv.FormatInt(s.Arrival, 10),
			strconv.FormatInt(s.CPUTime, 10),
			strconv.FormatInt(s.ReadyTime, 10),
			strconv.FormatInt(s.IOTime, 10),
			strconv.FormatInt(s.Completion, 10),
			strconv.FormatInt(s.Turnaround(), 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFile writes the statistics file for policy into dir and returns its
// path.
func WriteFile(dir string, policy model.Policy, stats []model.ProcessStats) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(policy))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := WriteCSV(csv.NewWriter(f), stats); err != nil {
		f.Close()
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}
	return path, nil
}
