package sim

import (
	"math"

	"github.com/me/cpusim/internal/workload"
	"github.com/me/cpusim/pkg/model"
)

const (
	// InitialAlpha is the estimate factor a process starts with.
	InitialAlpha = 0.5
	// AlphaGrowth multiplies alpha each time a process returns from I/O.
	AlphaGrowth = 1.5
)

// Process is one simulated job. Arrival, Service and ID never change; the
// rest is scheduling state owned by the QueueManager and Dispatcher.
type Process struct {
	ID      int
	Arrival int64
	Service int64

	Remaining int64
	Priority  int

	ReadyTime int64
	IOTime    int64
	CPUTime   int64

	// LastTimestamp is the first tick not yet charged to an accumulator.
	LastTimestamp int64

	// Alpha and Estimate drive the shortest-job-first ordering.
	Alpha    float64
	Estimate int64

	// Completion is the tick the process finished on, -1 until then.
	Completion int64
}

// NewProcess builds a process from a validated workload entry.
func NewProcess(e workload.Entry) *Process {
	return &Process{
		ID:            e.ID,
		Arrival:       e.Arrival,
		Service:       e.Service,
		Remaining:     e.Service,
		Priority:      e.Priority,
		LastTimestamp: e.Arrival,
		Alpha:         InitialAlpha,
		Estimate:      EstimateNextIO(InitialAlpha, e.Service),
		Completion:    -1,
	}
}

// EstimateNextIO is max(1, min(remaining, round(alpha*remaining))).
func EstimateNextIO(alpha float64, remaining int64) int64 {
	est := int64(math.Round(alpha * float64(remaining)))
	return max(1, min(remaining, est))
}

// Terminal reports whether the process has finished.
func (p *Process) Terminal() bool {
	return p.Remaining == 0
}

// HasIORequest draws once and reports a 1-in-N I/O request. Finished
// processes never request I/O and consume no draw.
func (p *Process) HasIORequest(env *Env) bool {
	if p.Remaining <= 0 {
		return false
	}
	return env.Draw(env.ioRequestChance) == 0
}

// HasIOCompleted draws once and reports a 1-in-N I/O completion.
func (p *Process) HasIOCompleted(env *Env) bool {
	return env.Draw(env.ioCompletionChance) == 0
}

// Stats returns the report row for the process.
func (p *Process) Stats() model.ProcessStats {
	return model.ProcessStats{
		ProcessID:  p.ID,
		Arrival:    p.Arrival,
		Service:    p.Service,
		ReadyTime:  p.ReadyTime,
		IOTime:     p.IOTime,
		CPUTime:    p.CPUTime,
		Completion: p.Completion,
	}
}

// ByEstimate orders processes by estimated time to next I/O, then by ID.
func ByEstimate(a, b *Process) bool {
	if a.Estimate != b.Estimate {
		return a.Estimate < b.Estimate
	}
	return a.ID < b.ID
}
