package model

import (
	"fmt"
	"strings"
)

// Policy selects the scheduling discipline used by a simulation.
type Policy string

const (
	PolicyNonAggressive Policy = "non-aggressive"
	PolicyAggressive    Policy = "aggressive"
	PolicySJF           Policy = "sjf"
)

// Policies lists every supported policy in comparison order.
var Policies = []Policy{PolicyNonAggressive, PolicyAggressive, PolicySJF}

// String returns the string representation of the policy.
func (p Policy) String() string {
	return string(p)
}

// Title returns the name used in report file names.
func (p Policy) Title() string {
	switch p {
	case PolicyNonAggressive:
		return "NonAggressivePreEmptive"
	case PolicyAggressive:
		return "AggressivePreEmptive"
	case PolicySJF:
		return "PreEmptiveShortestJobFirst"
	}
	return string(p)
}

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyNonAggressive, PolicyAggressive, PolicySJF:
		return true
	}
	return false
}

// ParsePolicy accepts the canonical names plus the single-letter
// shorthands N, A and S.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "non-aggressive", "nonaggressive", "n":
		return PolicyNonAggressive, nil
	case "aggressive", "a":
		return PolicyAggressive, nil
	case "sjf", "preemptive-sjf", "s":
		return PolicySJF, nil
	}
	return "", fmt.Errorf("unknown policy %q (want non-aggressive, aggressive or sjf)", s)
}

// JobState is the outcome of a tick for the execution slot.
type JobState string

const (
	JobStatePreempted    JobState = "preempted"
	JobStateStillRunning JobState = "still running"
	JobStateSleeping     JobState = "sleeping"
	JobStateIdling       JobState = "idling"
	JobStateExited       JobState = "exited"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if the process in the slot has finished.
func (s JobState) IsTerminal() bool {
	return s == JobStateExited
}
