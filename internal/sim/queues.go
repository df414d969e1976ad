package sim

import (
	"log/slog"

	"github.com/me/cpusim/internal/logging"
)

type location uint8

const (
	nowhere location = iota
	inReady
	inIOPool
)

// QueueManager owns the ready set and the I/O wait pool. It keeps every live
// process in at most one of them and charges the ready and I/O accumulators
// as processes move between them.
type QueueManager struct {
	env    *Env
	policy Policy
	ready  ReadySet
	ioPool *orderedSet
	where  map[int]location
	logger *slog.Logger
}

// NewQueueManager creates empty structures for policy.
func NewQueueManager(env *Env, policy Policy, logger *slog.Logger) *QueueManager {
	return &QueueManager{
		env:    env,
		policy: policy,
		ready:  policy.NewReadySet(),
		ioPool: newOrderedSet(ByEstimate),
		where:  make(map[int]location),
		logger: logging.Component(logger, "queues"),
	}
}

// AddNewProcess admits an arriving process to the ready set.
func (q *QueueManager) AddNewProcess(p *Process) error {
	return q.enqueue("admit", p)
}

// PickNextProcess removes the next process to run. When the ready set is
// empty it polls the I/O pool in order and dispatches the first process
// whose I/O has completed directly, without queueing it. It returns nil
// when nothing can run.
func (q *QueueManager) PickNextProcess() (*Process, error) {
	now := q.env.Now()

	if p := q.ready.Pop(); p != nil {
		delete(q.where, p.ID)
		if p.Terminal() {
			return nil, q.violation("pick", p, "selected a finished process")
		}
		p.ReadyTime += now - p.LastTimestamp
		p.LastTimestamp = now
		return p, nil
	}

	for _, p := range q.ioPool.Items() {
		if !p.HasIOCompleted(q.env) {
			continue
		}
		if err := q.leaveIOPool(p); err != nil {
			return nil, err
		}
		q.policy.ReturnFromIO(p)
		q.logger.Debug("dispatch from io pool", "tick", now, "process_id", p.ID)
		return p, nil
	}
	return nil, nil
}

// SendToIOWaitingPool blocks p, which ran during the current tick, on I/O.
func (q *QueueManager) SendToIOWaitingPool(p *Process) error {
	if err := q.checkDetached("block", p); err != nil {
		return err
	}
	p.LastTimestamp = q.env.Now() + 1
	if err := q.ioPool.Push(p); err != nil {
		return q.violation("block", p, err.Error())
	}
	q.where[p.ID] = inIOPool
	return nil
}

// RemoveFromIOPool completes p's I/O and returns it to the ready set under
// the policy's post-I/O rule.
func (q *QueueManager) RemoveFromIOPool(p *Process) error {
	if err := q.leaveIOPool(p); err != nil {
		return err
	}
	q.policy.ReturnFromIO(p)
	return q.enqueue("io return", p)
}

// Preempt returns p, which ran during the current tick, to the ready set
// under the policy's preemption rule.
func (q *QueueManager) Preempt(p *Process) error {
	if err := q.checkDetached("preempt", p); err != nil {
		return err
	}
	q.policy.Preempt(p)
	p.LastTimestamp = q.env.Now() + 1
	return q.enqueue("preempt", p)
}

// IOPool returns the blocked processes in polling order.
func (q *QueueManager) IOPool() []*Process {
	return q.ioPool.Items()
}

// Snapshot lists the IDs in the ready set and I/O pool.
type Snapshot struct {
	Ready  []int
	IOPool []int
}

// Snapshot returns the current contents of both structures.
func (q *QueueManager) Snapshot() Snapshot {
	return Snapshot{Ready: q.ready.IDs(), IOPool: q.ioPool.IDs()}
}

func (q *QueueManager) enqueue(op string, p *Process) error {
	if err := q.checkDetached(op, p); err != nil {
		return err
	}
	if err := q.ready.Push(p); err != nil {
		return q.violation(op, p, err.Error())
	}
	q.where[p.ID] = inReady
	return nil
}

func (q *QueueManager) leaveIOPool(p *Process) error {
	if q.where[p.ID] != inIOPool || !q.ioPool.Delete(p) {
		return q.violation("io return", p, "not in the io pool")
	}
	delete(q.where, p.ID)
	now := q.env.Now()
	p.IOTime += now - p.LastTimestamp
	p.LastTimestamp = now
	return nil
}

func (q *QueueManager) checkDetached(op string, p *Process) error {
	if p.Terminal() {
		return q.violation(op, p, "process already finished")
	}
	switch q.where[p.ID] {
	case inReady:
		return q.violation(op, p, "already in the ready set")
	case inIOPool:
		return q.violation(op, p, "already in the io pool")
	}
	return nil
}

func (q *QueueManager) violation(op string, p *Process, reason string) error {
	return &InvariantError{Op: op, ProcessID: p.ID, Tick: q.env.Now(), Reason: reason}
}
