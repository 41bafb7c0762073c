package chainset

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/systemshift/dagvdf/message"
)

// ConsistentSet reports whether every message in m agrees on a strict
// majority of its own coffer with every other member: let I be the
// intersection of all coffers in m; m is consistent iff 2·|I| >
// |msg.Coffer| for every msg in m. An empty m is consistent vacuously.
func ConsistentSet(m message.View) bool {
	if len(m) == 0 {
		return true
	}

	coffers := make([]mapset.Set[message.MessageId], 0, len(m))
	for _, msg := range m {
		coffers = append(coffers, msg.Coffer)
	}
	intersection := Intersection(coffers)

	for _, msg := range m {
		if !StrictMajority(intersection, msg.Coffer) {
			return false
		}
	}
	return true
}

// ConsistentChain reports whether m, read bottom-up by round, forms a
// consistent chain: at round 0 any non-empty layer qualifies; at every
// higher round r, the round-r tip must be non-empty and some non-empty
// subset of the round-(r-1) predecessors must be named, as a strict
// majority of every tip message's coffer, by every message in the tip.
func ConsistentChain(m message.View) bool {
	return chainHolds(m, false)
}

// StronglyConsistentChain strengthens ConsistentChain by requiring the
// subset of named predecessors to be the entire round-(r-1) layer, not
// merely some subset of it.
func StronglyConsistentChain(m message.View) bool {
	return chainHolds(m, true)
}

// chainHolds walks m's rounds top-down, peeling the current tip layer
// at each step and checking the majority-extension condition against
// the layer below, an iterative rendering of the predicate's
// recursive round-descent definition, not a literal recursive
// translation.
func chainHolds(m message.View, strong bool) bool {
	if len(m) == 0 {
		return false
	}

	cur := m
	round := cur.MaxRound()
	for round > 0 {
		tip := cur.ByRound(round)
		if len(tip) == 0 {
			return false
		}
		pred := cur.ByRound(round - 1)

		if !majorityExtends(cur, tip.IDs(), pred.IDs(), strong) {
			return false
		}

		cur = cur.BelowRound(round)
		if len(cur) == 0 {
			return false
		}
		round = cur.MaxRound()
	}
	return len(cur) > 0
}

// majorityExtends decides, for a candidate tip layer (by id) and the
// predecessor ids available below it, whether some non-empty subset of
// predIDs can serve as the tip's shared majority predecessor set.
//
// For the strong variant the only candidate is predIDs itself. For the
// ordinary variant the largest possible candidate is
// predIDs ∩ Intersection(tip coffers): since the subset-of-every-coffer
// constraint is monotonic and a larger candidate only makes the
// majority bound easier to satisfy, if any non-empty subset works, this
// maximal one does too, so testing it alone is sufficient, avoiding an
// exponential search over subsets of predIDs.
func majorityExtends(view message.View, tipIDs, predIDs mapset.Set[message.MessageId], strong bool) bool {
	if predIDs.Cardinality() == 0 {
		return false
	}

	if strong {
		for id := range tipIDs.Iter() {
			coffer := view[id].Coffer
			if !predIDs.IsSubset(coffer) {
				return false
			}
			if !StrictMajority(predIDs, coffer) {
				return false
			}
		}
		return true
	}

	cofferSets := make([]mapset.Set[message.MessageId], 0, tipIDs.Cardinality())
	for id := range tipIDs.Iter() {
		cofferSets = append(cofferSets, view[id].Coffer)
	}
	candidate := Intersection(cofferSets).Intersect(predIDs)
	if candidate.Cardinality() == 0 {
		return false
	}
	for id := range tipIDs.Iter() {
		if !StrictMajority(candidate, view[id].Coffer) {
			return false
		}
	}
	return true
}
