// Package runner executes simulations end to end and produces the final
// report persisted in run history.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/cpusim/internal/logging"
	"github.com/me/cpusim/internal/sim"
	"github.com/me/cpusim/internal/store"
	"github.com/me/cpusim/internal/workload"
	"github.com/me/cpusim/pkg/model"
)

// Runner runs simulations and records them in an optional store.
type Runner struct {
	store     store.Store
	simLogger *slog.Logger
	logger    *slog.Logger
}

// New creates a Runner. st may be nil, in which case runs are not recorded.
func New(st store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{store: st, simLogger: logger, logger: logging.Component(logger, "runner")}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRun builds the persisted form of a completed simulation.
func NewRun(cfg sim.Config, res *sim.Result) *model.Run {
	return &model.Run{
		ID: NewRunID(),
		Params: model.RunParams{
			Policy:             cfg.Policy,
			Seed:               cfg.Seed,
			IORequestChance:    cfg.IORequestChance,
			IOCompletionChance: cfg.IOCompletionChance,
			Timeslices:         cfg.Timeslices[:],
		},
		TotalTicks: res.TotalTicks,
		Processes:  len(res.Stats),
		Stats:      res.Stats,
		CreatedAt:  time.Now().UTC(),
	}
}

// Run simulates entries under cfg. observer receives every tick record
// and may be nil. The run is stored before it is returned.
func (r *Runner) Run(ctx context.Context, cfg sim.Config, entries []workload.Entry, observer sim.Observer) (*model.Run, error) {
	run, err := r.simulate(ctx, cfg, entries, observer)
	if err != nil {
		return nil, err
	}
	if err := r.record(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Compare runs entries under every policy with otherwise identical
// parameters. Results follow model.Policies order. The first failure
// cancels the remaining simulations and nothing is stored.
func (r *Runner) Compare(ctx context.Context, cfg sim.Config, entries []workload.Entry) ([]*model.Run, error) {
	simCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runs := make([]*model.Run, len(model.Policies))
	errs := make([]error, len(model.Policies))

	var wg sync.WaitGroup
	for i, policy := range model.Policies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pcfg := cfg
			pcfg.Policy = policy
			runs[i], errs[i] = r.simulate(simCtx, pcfg, entries, nil)
			if errs[i] != nil {
				cancel()
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	// SQLite takes one writer at a time.
	for _, run := range runs {
		if err := r.record(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *Runner) simulate(ctx context.Context, cfg sim.Config, entries []workload.Entry, observer sim.Observer) (*model.Run, error) {
	d, err := sim.New(cfg, entries, observer, r.simLogger)
	if err != nil {
		return nil, err
	}
	res, err := d.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", cfg.Policy, err)
	}
	return NewRun(cfg, res), nil
}

func (r *Runner) record(ctx context.Context, run *model.Run) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	r.logger.Info("run recorded", "run_id", run.ID, "policy", run.Params.Policy, "ticks", run.TotalTicks)
	return nil
}
