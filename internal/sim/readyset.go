package sim

import (
	"fmt"

	"github.com/google/btree"
)

// NumLevels is the number of priority levels of the feedback queues.
const NumLevels = 8

// ReadySet holds the processes eligible to run.
type ReadySet interface {
	// Push adds p according to the set's ordering.
	Push(p *Process) error
	// Pop removes and returns the next process to run, or nil.
	Pop() *Process
	Len() int
	// IDs lists members in the order Pop would return them.
	IDs() []int
}

// feedbackQueues is one FIFO queue per priority level, scanned 0 to 7.
type feedbackQueues struct {
	levels [NumLevels][]*Process
	size   int
}

func newFeedbackQueues() *feedbackQueues {
	return &feedbackQueues{}
}

func (f *feedbackQueues) Push(p *Process) error {
	if p.Priority < 0 || p.Priority >= NumLevels {
		return fmt.Errorf("priority %d outside [0,%d]", p.Priority, NumLevels-1)
	}
	f.levels[p.Priority] = append(f.levels[p.Priority], p)
	f.size++
	return nil
}

func (f *feedbackQueues) Pop() *Process {
	for i := range f.levels {
		q := f.levels[i]
		if len(q) == 0 {
			continue
		}
		p := q[0]
		q[0] = nil
		f.levels[i] = q[1:]
		f.size--
		return p
	}
	return nil
}

func (f *feedbackQueues) Len() int { return f.size }

func (f *feedbackQueues) IDs() []int {
	ids := make([]int, 0, f.size)
	for _, q := range f.levels {
		for _, p := range q {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Level returns the IDs queued at one priority level, head first.
func (f *feedbackQueues) Level(level int) []int {
	ids := make([]int, 0, len(f.levels[level]))
	for _, p := range f.levels[level] {
		ids = append(ids, p.ID)
	}
	return ids
}

// orderedSet keeps processes sorted by a comparator. Members must not have
// their sort key changed while inside the set.
type orderedSet struct {
	tree *btree.BTreeG[*Process]
}

func newOrderedSet(less btree.LessFunc[*Process]) *orderedSet {
	return &orderedSet{tree: btree.NewG(8, less)}
}

func (s *orderedSet) Push(p *Process) error {
	if _, replaced := s.tree.ReplaceOrInsert(p); replaced {
		return fmt.Errorf("key (estimate %d, id %d) already present", p.Estimate, p.ID)
	}
	return nil
}

func (s *orderedSet) Pop() *Process {
	p, ok := s.tree.DeleteMin()
	if !ok {
		return nil
	}
	return p
}

func (s *orderedSet) Len() int { return s.tree.Len() }

func (s *orderedSet) IDs() []int {
	ids := make([]int, 0, s.tree.Len())
	s.tree.Ascend(func(p *Process) bool {
		ids = append(ids, p.ID)
		return true
	})
	return ids
}

// Delete removes p and reports whether it was present.
func (s *orderedSet) Delete(p *Process) bool {
	_, ok := s.tree.Delete(p)
	return ok
}

// Items returns the members in ascending order.
func (s *orderedSet) Items() []*Process {
	items := make([]*Process, 0, s.tree.Len())
	s.tree.Ascend(func(p *Process) bool {
		items = append(items, p)
		return true
	})
	return items
}
