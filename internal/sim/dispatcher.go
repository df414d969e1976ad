// Package sim is the scheduling engine: a single-CPU dispatcher driven by a
// discrete logical clock, with pluggable scheduling policies.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/me/cpusim/internal/logging"
	"github.com/me/cpusim/internal/workload"
	"github.com/me/cpusim/pkg/model"
)

// Config holds the engine parameters of one simulation.
type Config struct {
	Policy             model.Policy
	Timeslices         Quanta
	Seed               int64
	IORequestChance    int
	IOCompletionChance int
	MaxTicks           int64 // 0 means no limit
}

// DefaultConfig returns the parameters the command line tool starts from.
func DefaultConfig() Config {
	return Config{
		Policy:             model.PolicyNonAggressive,
		Timeslices:         DefaultQuanta(),
		Seed:               1,
		IORequestChance:    10,
		IOCompletionChance: 4,
	}
}

// Validate checks that the engine can run with cfg.
func (c Config) Validate() error {
	var errs []error
	if !c.Policy.Valid() {
		errs = append(errs, fmt.Errorf("unknown policy %q", c.Policy))
	}
	for level, q := range c.Timeslices {
		if q < 1 {
			errs = append(errs, fmt.Errorf("timeslice for level %d must be at least 1, got %d", level, q))
		}
	}
	if c.IORequestChance < 1 {
		errs = append(errs, fmt.Errorf("io request chance must be at least 1, got %d", c.IORequestChance))
	}
	if c.IOCompletionChance < 1 {
		errs = append(errs, fmt.Errorf("io completion chance must be at least 1, got %d", c.IOCompletionChance))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max ticks must not be negative, got %d", c.MaxTicks))
	}
	return errors.Join(errs...)
}

// Observer receives the record of every tick.
type Observer interface {
	Observe(rec model.StateRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec model.StateRecord)

func (f ObserverFunc) Observe(rec model.StateRecord) { f(rec) }

// Result is the outcome of a completed simulation.
type Result struct {
	Policy     model.Policy
	TotalTicks int64
	Stats      []model.ProcessStats
}

// Dispatcher runs the per-tick scheduling loop.
type Dispatcher struct {
	cfg       Config
	env       *Env
	policy    Policy
	queues    *QueueManager
	processes []*Process
	arrivals  map[int64][]*Process
	running   *Process
	slice     int64
	completed int
	observer  Observer
	logger    *slog.Logger
}

// New builds a dispatcher for entries. observer and logger may be nil.
func New(cfg Config, entries []workload.Entry, observer Observer, logger *slog.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	policy, err := NewPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	env := NewEnv(cfg.Seed, cfg.IORequestChance, cfg.IOCompletionChance)

	d := &Dispatcher{
		cfg:      cfg,
		env:      env,
		policy:   policy,
		queues:   NewQueueManager(env, policy, logger),
		arrivals: make(map[int64][]*Process),
		observer: observer,
		logger:   logging.Component(logger, "dispatcher").With("policy", cfg.Policy),
	}

	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate process id %d", e.ID)
		}
		seen[e.ID] = true
		p := NewProcess(e)
		d.processes = append(d.processes, p)
		d.arrivals[p.Arrival] = append(d.arrivals[p.Arrival], p)
	}
	for _, list := range d.arrivals {
		slices.SortFunc(list, func(a, b *Process) int { return a.ID - b.ID })
	}
	return d, nil
}

// Done reports whether every process has completed.
func (d *Dispatcher) Done() bool {
	return d.completed == len(d.processes)
}

// Now returns the tick the next Step will simulate.
func (d *Dispatcher) Now() int64 {
	return d.env.Now()
}

// Running returns the process occupying the CPU between ticks, or nil.
func (d *Dispatcher) Running() *Process {
	return d.running
}

// Queues exposes the ready set and I/O pool for inspection.
func (d *Dispatcher) Queues() *QueueManager {
	return d.queues
}

// Processes returns every process in load order.
func (d *Dispatcher) Processes() []*Process {
	return d.processes
}

// Step simulates exactly one tick and returns its record.
func (d *Dispatcher) Step() (model.StateRecord, error) {
	now := d.env.Now()
	rec := model.NewStateRecord(now)

	if err := d.admitArrivals(now); err != nil {
		return rec, err
	}

	if d.running == nil {
		p, err := d.queues.PickNextProcess()
		if err != nil {
			return rec, err
		}
		if p != nil {
			d.running = p
			d.slice = d.policy.Timeslice(p, d.cfg.Timeslices)
			d.logger.Debug("dispatch", "tick", now, "process_id", p.ID, "priority", p.Priority, "timeslice", d.slice)
		}
	}

	if d.running != nil {
		if err := d.execute(&rec); err != nil {
			return rec, err
		}
	}

	if d.observer != nil {
		d.observer.Observe(rec)
	}
	d.env.Tick()
	return rec, nil
}

// Run steps until every process completes and returns the final report.
func (d *Dispatcher) Run(ctx context.Context) (*Result, error) {
	d.logger.Info("simulation started", "processes", len(d.processes), "seed", d.cfg.Seed)
	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.cfg.MaxTicks > 0 && d.env.Now() >= d.cfg.MaxTicks {
			return nil, fmt.Errorf("%w: %d ticks, %d of %d processes completed",
				ErrTickLimit, d.cfg.MaxTicks, d.completed, len(d.processes))
		}
		if _, err := d.Step(); err != nil {
			return nil, err
		}
	}
	res := d.Result()
	d.logger.Info("simulation completed", "ticks", res.TotalTicks)
	return res, nil
}

// Result returns the statistics gathered so far.
func (d *Dispatcher) Result() *Result {
	stats := make([]model.ProcessStats, 0, len(d.processes))
	for _, p := range d.processes {
		stats = append(stats, p.Stats())
	}
	return &Result{Policy: d.cfg.Policy, TotalTicks: d.env.Now(), Stats: stats}
}

func (d *Dispatcher) admitArrivals(now int64) error {
	list, ok := d.arrivals[now]
	if !ok {
		return nil
	}
	delete(d.arrivals, now)
	for _, p := range list {
		if err := d.queues.AddNewProcess(p); err != nil {
			return err
		}
	}
	return nil
}

// execute runs the occupying process for one tick and decides its fate.
func (d *Dispatcher) execute(rec *model.StateRecord) error {
	p := d.running
	now := d.env.Now()
	if p.Terminal() {
		return &InvariantError{Op: "run", ProcessID: p.ID, Tick: now, Reason: "process already finished"}
	}

	p.Remaining--
	p.CPUTime++
	d.slice--
	rec.ProcessID = p.ID
	rec.Remaining = p.Remaining

	switch {
	case p.Remaining == 0:
		p.Completion = now
		d.completed++
		d.running = nil
		d.slice = 0
		rec.State = model.JobStateExited
		d.logger.Debug("exit", "tick", now, "process_id", p.ID)
		return nil

	case d.slice <= 0:
		rec.State = model.JobStatePreempted
		return d.preemptRunning()
	}

	// Only processes blocked before this tick are polled.
	blocked := d.queues.IOPool()

	if p.HasIORequest(d.env) {
		if err := d.queues.SendToIOWaitingPool(p); err != nil {
			return err
		}
		d.running = nil
		rec.IORequest = true
		rec.State = model.JobStateSleeping
	}

	var returned []*Process
	for _, b := range blocked {
		if b.HasIOCompleted(d.env) {
			returned = append(returned, b)
		}
	}
	for _, b := range returned {
		if err := d.queues.RemoveFromIOPool(b); err != nil {
			return err
		}
		rec.IOCompleted = append(rec.IOCompleted, b.ID)
	}

	if d.running == nil {
		return nil
	}
	if len(returned) > 0 && d.policy.PreemptOnIOReturn() {
		rec.State = model.JobStatePreempted
		return d.preemptRunning()
	}
	rec.State = model.JobStateStillRunning
	return nil
}

func (d *Dispatcher) preemptRunning() error {
	p := d.running
	d.running = nil
	d.slice = 0
	return d.queues.Preempt(p)
}
