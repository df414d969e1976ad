// Package store persists the final reports of completed simulations.
package store

import (
	"context"
	"errors"

	"github.com/me/cpusim/pkg/model"
)

// ErrNotFound is returned by operations that require an existing run.
var ErrNotFound = errors.New("run not found")

// Store defines the persistence layer for run history.
type Store interface {
	// CreateRun stores run and its per-process statistics atomically.
	CreateRun(ctx context.Context, run *model.Run) error
	// GetRun returns the run with its statistics, or nil if absent.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns one page of runs, newest first, without statistics,
	// plus the total number of matching runs.
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
