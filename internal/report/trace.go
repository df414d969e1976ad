// Package report turns simulation output into text: the per-tick trace,
// the per-policy statistics CSV and the cross-policy comparison table.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/me/cpusim/pkg/model"
)

// TraceLogger writes the text form of tick records to w. Exit records are
// always written; every other record only when Verbose is set.
type TraceLogger struct {
	Verbose bool

	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewTraceLogger creates a trace logger writing to w.
func NewTraceLogger(w io.Writer, verbose bool) *TraceLogger {
	return &TraceLogger{w: w, Verbose: verbose}
}

// Observe implements sim.Observer. The first write error is kept and later
// records are dropped.
func (t *TraceLogger) Observe(rec model.StateRecord) {
	if !t.Verbose && rec.State != model.JobStateExited {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintln(t.w, rec.String())
}

// Err returns the first write error, if any.
func (t *TraceLogger) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done writes the completion banner.
func (t *TraceLogger) Done() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	_, t.err = fmt.Fprintln(t.w, "All processes completed !")
	return t.err
}
