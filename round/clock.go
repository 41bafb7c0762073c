package round

import (
	"sync"

	"github.com/systemshift/dagvdf/message"
)

// Phase is one of the two halves of a tick.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseEnd
)

func (p Phase) String() string {
	if p == PhaseStart {
		return "start"
	}
	return "end"
}

// Clock maintains the global tick counter and phase, advancing only
// once every registered process has acked the current phase, a
// strict barrier, not a timer. The tick counter bumps on the
// end-to-start transition.
type Clock struct {
	mu        sync.Mutex
	tick      uint64
	phase     Phase
	processes []message.Process
	acked     map[message.Process]bool
}

// NewClock builds a Clock at tick 0, phase start, barriered on exactly
// the given processes.
func NewClock(processes []message.Process) *Clock {
	return &Clock{
		processes: append([]message.Process(nil), processes...),
		acked:     make(map[message.Process]bool, len(processes)),
	}
}

// Tick returns the current tick counter.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Phase returns the current phase.
func (c *Clock) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Ack records that p has completed its actions for the current phase.
// Once every registered process has acked, the clock advances:
// start→end, or end→start with the tick counter incremented. Returns
// whether this call caused the advance.
func (c *Clock) Ack(p message.Process) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acked[p] = true
	for _, proc := range c.processes {
		if !c.acked[proc] {
			return false
		}
	}

	for k := range c.acked {
		delete(c.acked, k)
	}
	if c.phase == PhaseStart {
		c.phase = PhaseEnd
	} else {
		c.phase = PhaseStart
		c.tick++
	}
	return true
}
