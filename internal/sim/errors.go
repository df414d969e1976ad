package sim

import (
	"errors"
	"fmt"
)

// ErrTickLimit is returned by Run when the configured tick limit is reached
// before every process completed.
var ErrTickLimit = errors.New("tick limit reached")

// InvariantError reports broken scheduler bookkeeping. It always indicates a
// bug and aborts the run.
type InvariantError struct {
	Op        string
	ProcessID int
	Tick      int64
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated at tick %d: %s process %d: %s", e.Tick, e.Op, e.ProcessID, e.Reason)
}
