package sim

import (
	"fmt"

	"github.com/me/cpusim/pkg/model"
)

// Quanta holds the timeslice, in ticks, for each priority level.
type Quanta [NumLevels]int64

// DefaultQuanta returns 1, 2, 4, ... 128.
func DefaultQuanta() Quanta {
	var q Quanta
	q[0] = 1
	for i := 1; i < NumLevels; i++ {
		q[i] = 2 * q[i-1]
	}
	return q
}

// Policy supplies the rules that differ between scheduling disciplines.
// The QueueManager and Dispatcher call through it uniformly.
type Policy interface {
	Kind() model.Policy

	// NewReadySet returns the ready structure new arrivals are admitted to.
	NewReadySet() ReadySet

	// Timeslice is the number of ticks p may run once dispatched.
	Timeslice(p *Process, quanta Quanta) int64

	// Preempt adjusts p when it is stopped without finishing or blocking.
	Preempt(p *Process)

	// ReturnFromIO adjusts p when its I/O completes.
	ReturnFromIO(p *Process)

	// PreemptOnIOReturn reports whether an I/O completion displaces the
	// running process.
	PreemptOnIOReturn() bool
}

// NewPolicy returns the strategy for kind.
func NewPolicy(kind model.Policy) (Policy, error) {
	switch kind {
	case model.PolicyNonAggressive:
		return nonAggressive{}, nil
	case model.PolicyAggressive:
		return aggressive{}, nil
	case model.PolicySJF:
		return shortestJobFirst{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q", kind)
}

// nonAggressive demotes on timeslice expiry and restarts bursts at level 0.
// Nothing interrupts a running process except its own timeslice.
type nonAggressive struct{}

func (nonAggressive) Kind() model.Policy      { return model.PolicyNonAggressive }
func (nonAggressive) NewReadySet() ReadySet   { return newFeedbackQueues() }
func (nonAggressive) PreemptOnIOReturn() bool { return false }

func (nonAggressive) Timeslice(p *Process, quanta Quanta) int64 {
	return quanta[p.Priority]
}

func (nonAggressive) Preempt(p *Process) {
	p.Priority = min(NumLevels-1, p.Priority+1)
}

func (nonAggressive) ReturnFromIO(p *Process) {
	p.Priority = 0
}

// aggressive promotes a process every time it is stopped or returns from
// I/O, and a returning process always displaces the running one.
type aggressive struct{}

func (aggressive) Kind() model.Policy      { return model.PolicyAggressive }
func (aggressive) NewReadySet() ReadySet   { return newFeedbackQueues() }
func (aggressive) PreemptOnIOReturn() bool { return true }

func (aggressive) Timeslice(p *Process, quanta Quanta) int64 {
	return quanta[p.Priority]
}

func (aggressive) Preempt(p *Process) {
	p.Priority = max(0, p.Priority-1)
}

func (aggressive) ReturnFromIO(p *Process) {
	p.Priority = max(0, p.Priority-1)
}

// shortestJobFirst runs the process with the smallest estimated time to its
// next I/O for exactly that estimate.
type shortestJobFirst struct{}

func (shortestJobFirst) Kind() model.Policy      { return model.PolicySJF }
func (shortestJobFirst) NewReadySet() ReadySet   { return newOrderedSet(ByEstimate) }
func (shortestJobFirst) PreemptOnIOReturn() bool { return false }

func (shortestJobFirst) Timeslice(p *Process, _ Quanta) int64 {
	return p.Estimate
}

// Preempt keeps the estimate; it is only revised after I/O.
func (shortestJobFirst) Preempt(*Process) {}

func (shortestJobFirst) ReturnFromIO(p *Process) {
	p.Alpha *= AlphaGrowth
	p.Estimate = EstimateNextIO(p.Alpha, p.Remaining)
}
