package round

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/message"
)

// Simulator is a single-threaded cooperative driver: it steps every
// registered process through TickStart then TickEnd each tick, in a
// fixed (sorted-by-process-id) order, enforcing the
// start/end barrier by construction rather than by synchronization
// primitives, no process sees tick t+1's view before every process
// has finished tick t.
type Simulator struct {
	Config    Config
	Store     message.Store
	Clock     *Clock
	Processes map[message.Process]*Process
	Logger    *zap.Logger

	order []message.Process
}

// NewSimulator builds a Simulator over the given processes, keyed by
// their ID. The Store is shared: every process reads the same
// append-only DAG.
func NewSimulator(cfg Config, store message.Store, procs map[message.Process]*Process, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	order := make([]message.Process, 0, len(procs))
	for id := range procs {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Simulator{
		Config:    cfg,
		Store:     store,
		Clock:     NewClock(cfg.Processes),
		Processes: procs,
		Logger:    logger,
		order:     order,
	}
}

// Step runs one full tick: TickStart for every process against the
// current store snapshot, then TickEnd for every process against a
// fresh snapshot that includes everything appended during start.
// Returns the tick number that just completed.
func (s *Simulator) Step(ctx context.Context) (uint64, error) {
	tick := s.Clock.Tick()

	startView := s.Store.Snapshot()
	for _, id := range s.order {
		p := s.Processes[id]
		if err := p.TickStart(tick, startView); err != nil {
			return tick, fmt.Errorf("tick %d start for %s: %w", tick, id, err)
		}
		s.Clock.Ack(id)
	}

	endView := s.Store.Snapshot()
	for _, id := range s.order {
		p := s.Processes[id]
		if _, err := p.TickEnd(tick, endView); err != nil {
			return tick, fmt.Errorf("tick %d end for %s: %w", tick, id, err)
		}
		s.Clock.Ack(id)
	}

	return tick, nil
}

// Run drives Step until MaxTick is reached (0 means unbounded, in
// which case ctx cancellation is the only exit) or ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tick, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if s.Config.MaxTick > 0 && tick+1 >= s.Config.MaxTick {
			return nil
		}
	}
}
