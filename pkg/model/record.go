package model

import (
	"strconv"
	"strings"
)

// NoProcess is the sentinel process ID for a tick with an empty slot.
const NoProcess = -1

// StateRecord describes one tick of a simulation.
type StateRecord struct {
	Tick        int64    `json:"tick"`
	ProcessID   int      `json:"process_id"`
	Remaining   int64    `json:"remaining"`
	IORequest   bool     `json:"io_request"`
	IOCompleted []int    `json:"io_completed,omitempty"`
	State       JobState `json:"state"`
}

// NewStateRecord returns an idle record for the given tick.
func NewStateRecord(tick int64) StateRecord {
	return StateRecord{
		Tick:      tick,
		ProcessID: NoProcess,
		Remaining: -1,
		State:     JobStateIdling,
	}
}

// Running reports whether a process occupied the slot during the tick.
func (r StateRecord) Running() bool {
	return r.ProcessID >= 0
}

// String renders the record as tick:pid:remaining:io:completed:state.
// An empty slot prints "*" and "x"; exited jobs print "* exited".
func (r StateRecord) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.Tick, 10))
	b.WriteByte(':')
	if r.Running() {
		b.WriteString(strconv.Itoa(r.ProcessID))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(r.Remaining, 10))
	} else {
		b.WriteString("*:x")
	}
	b.WriteByte(':')
	b.WriteString(strconv.FormatBool(r.IORequest))
	b.WriteByte(':')
	if len(r.IOCompleted) == 0 {
		b.WriteString("none")
	} else {
		for i, id := range r.IOCompleted {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(id))
		}
	}
	b.WriteByte(':')
	if r.State == JobStateExited {
		b.WriteString("* ")
	}
	b.WriteString(string(r.State))
	return b.String()
}
