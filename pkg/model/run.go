package model

import "time"

// ProcessStats is the end-of-run report row for one process.
type ProcessStats struct {
	ProcessID  int   `json:"process_id"`
	Arrival    int64 `json:"arrival"`
	Service    int64 `json:"service"`
	ReadyTime  int64 `json:"ready_time"`
	IOTime     int64 `json:"io_time"`
	CPUTime    int64 `json:"cpu_time"`
	Completion int64 `json:"completion"`
}

// Turnaround is the number of ticks from arrival to completion, inclusive.
func (s ProcessStats) Turnaround() int64 {
	if s.Completion < 0 {
		return 0
	}
	return s.Completion + 1 - s.Arrival
}

// RunParams records the parameters that produced a Run.
type RunParams struct {
	Policy             Policy  `json:"policy"`
	Seed               int64   `json:"seed"`
	IORequestChance    int     `json:"io_request_chance"`
	IOCompletionChance int     `json:"io_completion_chance"`
	Timeslices         []int64 `json:"timeslices"`
}

// Run is a completed simulation and its final report.
type Run struct {
	ID         string         `json:"id"`
	Params     RunParams      `json:"params"`
	TotalTicks int64          `json:"total_ticks"`
	Processes  int            `json:"processes"`
	Stats      []ProcessStats `json:"stats,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
