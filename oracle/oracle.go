// Package oracle supplies the testing-harness callback a Byzantine
// process consults at VDF-start instead of running the well-behaved
// selection rule: the adversary's existential "pick any subset of
// prior messages" choice, made concrete so property tests can drive
// worst-case schedules deterministically.
package oracle

import (
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/systemshift/dagvdf/message"
)

// Oracle is consulted once per VDF-start tick by a Byzantine process.
// It returns the round to attach to the forthcoming message and the
// coffer of predecessor ids to name, any subset of currently-known
// messages, per the adversarial-freedom rule; the oracle is not
// required to include any particular message.
type Oracle interface {
	Choose(view message.View, maxSeenRound uint64) (round uint64, coffer mapset.Set[message.MessageId])
}

// RandomOracle exercises the full adversarial-freedom rule: the round
// is picked uniformly from {maxSeenRound, maxSeenRound+1}, and the
// coffer is a uniformly random subset (possibly empty) of the
// resulting predecessor layer.
type RandomOracle struct {
	rng *rand.Rand
}

// NewRandomOracle builds a RandomOracle seeded deterministically, so
// property tests that embed one remain reproducible.
func NewRandomOracle(seed int64) *RandomOracle {
	return &RandomOracle{rng: rand.New(rand.NewSource(seed))}
}

func (o *RandomOracle) Choose(view message.View, maxSeenRound uint64) (uint64, mapset.Set[message.MessageId]) {
	round := maxSeenRound
	if o.rng.Intn(2) == 1 {
		round++
	}

	coffer := mapset.NewThreadUnsafeSet[message.MessageId]()
	if round == 0 {
		return round, coffer
	}

	layer := view.ByRound(round - 1).SortedIDs()
	for _, id := range layer {
		if o.rng.Intn(2) == 1 {
			coffer.Add(id)
		}
	}
	return round, coffer
}

// WorstCaseOracle wraps a user-supplied decision function, letting
// property tests reproduce a specific adversarial schedule (e.g. the
// outpacing fork of S6) instead of a random one.
type WorstCaseOracle struct {
	ChooseFunc func(view message.View, maxSeenRound uint64) (uint64, mapset.Set[message.MessageId])
}

func (o *WorstCaseOracle) Choose(view message.View, maxSeenRound uint64) (uint64, mapset.Set[message.MessageId]) {
	return o.ChooseFunc(view, maxSeenRound)
}
