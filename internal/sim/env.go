package sim

import "math/rand/v2"

// Env owns the logical clock and the random stream of one simulation.
// Every component that reads the time or draws a random number is handed
// the same Env, so a run is reproducible from its seed.
type Env struct {
	now                int64
	rng                *rand.Rand
	ioRequestChance    int
	ioCompletionChance int
}

// NewEnv creates an environment at tick 0. The chances are the
// denominators N of the 1-in-N I/O request and completion events.
func NewEnv(seed int64, ioRequestChance, ioCompletionChance int) *Env {
	return &Env{
		rng:                rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		ioRequestChance:    ioRequestChance,
		ioCompletionChance: ioCompletionChance,
	}
}

// Now returns the current tick.
func (e *Env) Now() int64 { return e.now }

// Tick advances the clock by one.
func (e *Env) Tick() { e.now++ }

// Draw returns a uniform value in [0, n). n must be positive.
func (e *Env) Draw(n int) int {
	return e.rng.IntN(n)
}
