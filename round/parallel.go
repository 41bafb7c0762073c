package round

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/message"
)

// ParallelSimulator is a concurrency-faithful driver: one goroutine
// per process with an explicit two-stage sync.WaitGroup barrier per
// tick. All shared-state access goes through the message.Store's own
// mutex; the only additional synchronization is the barrier itself,
// hand-rolled with WaitGroup and an error channel rather than pulling
// in errgroup.
type ParallelSimulator struct {
	Config    Config
	Store     message.Store
	Clock     *Clock
	Processes map[message.Process]*Process
	Logger    *zap.Logger
}

// NewParallelSimulator builds a ParallelSimulator over the given
// processes, keyed by their ID.
func NewParallelSimulator(cfg Config, store message.Store, procs map[message.Process]*Process, logger *zap.Logger) *ParallelSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelSimulator{
		Config:    cfg,
		Store:     store,
		Clock:     NewClock(cfg.Processes),
		Processes: procs,
		Logger:    logger,
	}
}

// Step runs one full tick across every process concurrently, with a
// barrier between the start phase and the end phase: no process
// begins TickEnd until every process has finished TickStart.
func (s *ParallelSimulator) Step(ctx context.Context) (uint64, error) {
	tick := s.Clock.Tick()
	startView := s.Store.Snapshot()

	if err := s.runPhase(ctx, tick, func(p *Process) error {
		return p.TickStart(tick, startView)
	}); err != nil {
		return tick, fmt.Errorf("tick %d start: %w", tick, err)
	}

	endView := s.Store.Snapshot()
	if err := s.runPhase(ctx, tick, func(p *Process) error {
		_, err := p.TickEnd(tick, endView)
		return err
	}); err != nil {
		return tick, fmt.Errorf("tick %d end: %w", tick, err)
	}

	return tick, nil
}

// runPhase fans action out over every process and blocks until all
// have returned, acking the clock as each finishes, then surfaces the
// first error encountered (if any) after the whole phase completes.
func (s *ParallelSimulator) runPhase(ctx context.Context, tick uint64, action func(*Process) error) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(s.Processes))

	for id, p := range s.Processes {
		wg.Add(1)
		go func(id message.Process, p *Process) {
			defer wg.Done()
			if err := action(p); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
				return
			}
			s.Clock.Ack(id)
		}(id, p)
	}

	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
		s.Logger.Error("process phase failed", zap.Error(err))
	}
	return first
}

// Run drives Step until MaxTick is reached (0 means unbounded) or ctx
// is done.
func (s *ParallelSimulator) Run(ctx context.Context) error {
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
