package round

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/chainset"
	"github.com/systemshift/dagvdf/message"
	"github.com/systemshift/dagvdf/oracle"
)

// Process drives one participant's per-tick actions: at VDF-start it
// either runs the well-behaved selection rule or consults an Oracle
// for adversarial freedom; at VDF-end it appends whatever is pending
// to the DAG and, for well-behaved processes, checks safety.
type Process struct {
	ID         message.Process
	Byzantine  bool
	Period     uint64
	WellBehaved []message.Process
	Store      message.Store
	Oracle     oracle.Oracle
	Logger     *zap.Logger

	mu      sync.Mutex
	counter uint64
	pending *message.Message
}

// NewProcess builds a Process. A Byzantine process must carry a
// non-nil Oracle; a well-behaved one ignores Oracle entirely.
func NewProcess(id message.Process, byzantine bool, period uint64, wellBehaved []message.Process, store message.Store, oc oracle.Oracle, logger *zap.Logger) (*Process, error) {
	if period == 0 {
		return nil, fmt.Errorf("%w: process %s has a zero period", ErrConfigInvalid, id)
	}
	if byzantine && oc == nil {
		return nil, fmt.Errorf("%w: byzantine process %s has no oracle", ErrConfigInvalid, id)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: process %s has no store", ErrConfigInvalid, id)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{
		ID:          id,
		Byzantine:   byzantine,
		Period:      period,
		WellBehaved: append([]message.Process(nil), wellBehaved...),
		Store:       store,
		Oracle:      oc,
		Logger:      logger,
	}, nil
}

// Pending returns the process's current pending message, or nil.
func (p *Process) Pending() *message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// TickStart runs the start-phase action for the given tick against
// view: a no-op unless tick is a VDF-start tick for this process
// (tick mod Period == 0).
func (p *Process) TickStart(tick uint64, view message.View) error {
	if tick%p.Period != 0 {
		return nil
	}
	if p.Byzantine {
		p.tickStartByzantine(view)
		return nil
	}
	return p.tickStartWellBehaved(tick, view)
}

func (p *Process) tickStartWellBehaved(tick uint64, view message.View) error {
	if !view.Complete() {
		p.Logger.Debug("view incomplete at vdf-start, retrying at the next vdf-start tick",
			zap.String("process", string(p.ID)), zap.Uint64("tick", tick))
		return nil
	}

	currentRound := tick / p.Period

	var coffer mapset.Set[message.MessageId]
	if currentRound == 0 {
		coffer = mapset.NewThreadUnsafeSet[message.MessageId]()
	} else {
		accepted := chainset.Accepted(view.BelowRound(currentRound + 1))
		coffer = accepted.ByRound(currentRound - 1).IDs()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := message.MessageId{Process: p.ID, Counter: p.counter}
	p.counter++
	p.pending = message.NewMessage(id, currentRound, coffer)
	return nil
}

func (p *Process) tickStartByzantine(view message.View) {
	round, coffer := p.Oracle.Choose(view, view.MaxRound())

	p.mu.Lock()
	defer p.mu.Unlock()
	id := message.MessageId{Process: p.ID, Counter: p.counter}
	p.counter++
	p.pending = message.NewMessage(id, round, coffer)
}

// TickEnd runs the end-phase action for the given tick: on a
// VDF-end tick (tick mod Period == Period-1), appends the pending
// message to the store, checking safety first for well-behaved
// processes. Returns the appended message, or nil when this tick did
// not end a VDF or nothing was pending.
func (p *Process) TickEnd(tick uint64, view message.View) (*message.Message, error) {
	if tick%p.Period != p.Period-1 {
		return nil, nil
	}

	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()
	if pending == nil {
		return nil, nil
	}

	if !p.Byzantine {
		if err := p.checkSafety(pending, view); err != nil {
			return nil, err
		}
	}

	if err := p.Store.Add(context.Background(), pending); err != nil {
		p.Logger.Warn("dropping own pending message",
			zap.String("process", string(p.ID)), zap.Error(err))
	}

	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
	return pending, nil
}

// Safe reports whether the process's current pending message (if any)
// satisfies the safety invariant against view. A nil pending message
// is vacuously safe, matching is_safe()'s read-only, non-blocking
// nature.
func (p *Process) Safe(view message.View) error {
	pending := p.Pending()
	if pending == nil {
		return nil
	}
	return p.checkSafety(pending, view)
}

// checkSafety enforces the safety invariant: for a well-behaved
// pending message with round > 0, the coffer must contain every
// well-behaved message at round-1 visible in view, and those ids must
// form a strict majority
// of the coffer.
func (p *Process) checkSafety(pending *message.Message, view message.View) error {
	if pending.Round == 0 {
		return nil
	}

	predRound := wellBehavedOnly(view.ByRound(pending.Round-1), p.WellBehaved).IDs()

	if !predRound.IsSubset(pending.Coffer) {
		return fmt.Errorf("%w: %s coffer omits a well-behaved predecessor", ErrSafetyViolation, pending.ID)
	}
	if !chainset.StrictMajority(predRound, pending.Coffer) {
		return fmt.Errorf("%w: well-behaved predecessors are not a strict majority of %s's coffer", ErrSafetyViolation, pending.ID)
	}
	return nil
}

func wellBehavedOnly(view message.View, wellBehaved []message.Process) message.View {
	wb := mapset.NewThreadUnsafeSet[message.Process](wellBehaved...)
	out := message.View{}
	for id, m := range view {
		if wb.Contains(id.Process) {
			out[id] = m
		}
	}
	return out
}
