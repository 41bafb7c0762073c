package round

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/message"
)

// Config is the fixed-at-boot configuration of the round/tick state
// machine: the process set, its Byzantine subset, and the two VDF
// periods.
type Config struct {
	Processes []message.Process
	Byzantine []message.Process
	TWB       uint64 // VDF ticks for a well-behaved process
	TAdv      uint64 // VDF ticks for a Byzantine process
	MaxTick   uint64 // test-harness bound; 0 means unbounded
}

// Validate enforces the ConfigError checks: B ⊆ P, positive periods,
// and the rate invariant |W|·TAdv > |B|·TWB. It logs a warning, rather
// than failing, when only the weaker inequality holds and the
// stronger |W|·TAdv > 2·|B|·TWB proposed as an alternative does not.
func (c Config) Validate(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(c.Processes) == 0 {
		return fmt.Errorf("%w: process set is empty", ErrConfigInvalid)
	}
	if c.TWB == 0 {
		return fmt.Errorf("%w: t_wb must be positive", ErrConfigInvalid)
	}
	if c.TAdv == 0 {
		return fmt.Errorf("%w: t_adv must be positive", ErrConfigInvalid)
	}

	procs := mapset.NewThreadUnsafeSet[message.Process](c.Processes...)
	byz := mapset.NewThreadUnsafeSet[message.Process](c.Byzantine...)
	if !byz.IsSubset(procs) {
		return fmt.Errorf("%w: byzantine set is not a subset of the process set", ErrConfigInvalid)
	}

	w := uint64(procs.Cardinality() - byz.Cardinality())
	b := uint64(byz.Cardinality())

	if b > 0 && !(w*c.TAdv > b*c.TWB) {
		return fmt.Errorf("%w: rate invariant |W|*t_adv > |B|*t_wb does not hold (w=%d tAdv=%d b=%d tWB=%d)",
			ErrConfigInvalid, w, c.TAdv, b, c.TWB)
	}

	if b > 0 && !(w*c.TAdv > 2*b*c.TWB) {
		logger.Warn("rate invariant holds only in its weaker form; |W|*t_adv > 2*|B|*t_wb does not",
			zap.Uint64("well_behaved", w), zap.Uint64("byzantine", b),
			zap.Uint64("t_adv", c.TAdv), zap.Uint64("t_wb", c.TWB))
	}

	return nil
}

// WellBehaved returns the process set minus the Byzantine subset.
func (c Config) WellBehaved() []message.Process {
	byz := mapset.NewThreadUnsafeSet[message.Process](c.Byzantine...)
	out := make([]message.Process, 0, len(c.Processes))
	for _, p := range c.Processes {
		if !byz.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// IsByzantine reports whether p is in the configured Byzantine set.
func (c Config) IsByzantine(p message.Process) bool {
	for _, b := range c.Byzantine {
		if b == p {
			return true
		}
	}
	return false
}

// PeriodFor returns TAdv for a Byzantine process and TWB otherwise.
func (c Config) PeriodFor(p message.Process) uint64 {
	if c.IsByzantine(p) {
		return c.TAdv
	}
	return c.TWB
}
