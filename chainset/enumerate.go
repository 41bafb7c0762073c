package chainset

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/systemshift/dagvdf/message"
)

// ConsistentChains returns every subset of m that contains at least
// one message at m's maximum round and satisfies ConsistentChain. The
// result is order-independent: it depends only on m.
func ConsistentChains(m message.View) []message.View {
	return enumerateChains(m, false)
}

// StronglyConsistentChains is the StronglyConsistentChain analogue of
// ConsistentChains.
func StronglyConsistentChains(m message.View) []message.View {
	return enumerateChains(m, true)
}

// chainCandidate is a partially built chain during layer-by-layer
// enumeration: ids accumulates every round chosen so far, topIDs holds
// just the most recently chosen round's ids (the only state the next
// round's extension check depends on).
type chainCandidate struct {
	ids    mapset.Set[message.MessageId]
	topIDs mapset.Set[message.MessageId]
}

// enumerateChains builds chains round by round from 0 upward. At each
// round it tries every non-empty subset of that round's messages as a
// candidate tip, keeping those that extend some existing candidate.
// The set of valid tips for a given round depends only on the
// candidate's topIDs, not on the rest of its history, so results are
// memoized per distinct topIDs within a round, the "memoize per
// lower-round prefix" this predicate's recursive definition calls for,
// without a literal recursive translation. Naively exponential in
// per-round fanout, as the predicate's own design notes accept.
func enumerateChains(m message.View, strong bool) []message.View {
	if len(m) == 0 {
		return nil
	}
	maxRound := m.MaxRound()

	round0 := m.ByRound(0)
	frontier := make([]chainCandidate, 0)
	for _, subset := range nonEmptySubsets(round0.SortedIDs()) {
		frontier = append(frontier, chainCandidate{ids: subset, topIDs: subset})
	}

	for round := uint64(1); round <= maxRound && len(frontier) > 0; round++ {
		tipLayer := m.ByRound(round)
		if len(tipLayer) == 0 {
			frontier = nil
			break
		}
		tipSubsets := nonEmptySubsets(tipLayer.SortedIDs())

		cache := make(map[string][]mapset.Set[message.MessageId])
		next := make([]chainCandidate, 0, len(frontier))
		for _, cand := range frontier {
			key := idSetKey(cand.topIDs)
			validTips, ok := cache[key]
			if !ok {
				for _, tipIDs := range tipSubsets {
					if majorityExtends(tipLayer, tipIDs, cand.topIDs, strong) {
						validTips = append(validTips, tipIDs)
					}
				}
				cache[key] = validTips
			}
			for _, tipIDs := range validTips {
				merged := cand.ids.Clone()
				merged = merged.Union(tipIDs)
				next = append(next, chainCandidate{ids: merged, topIDs: tipIDs})
			}
		}
		frontier = next
	}

	out := make([]message.View, 0, len(frontier))
	for _, cand := range frontier {
		out = append(out, m.FromIDs(cand.ids.ToSlice()))
	}
	return out
}

// nonEmptySubsets returns every non-empty subset of ids as a
// mapset.Set, via bitmask enumeration. len(ids) is expected to stay
// small; this is the exponential step the predicate's design notes
// flag as acceptable at the intended scale.
func nonEmptySubsets(ids []message.MessageId) []mapset.Set[message.MessageId] {
	n := len(ids)
	out := make([]mapset.Set[message.MessageId], 0, (1<<n)-1)
	for mask := 1; mask < (1 << n); mask++ {
		s := mapset.NewThreadUnsafeSet[message.MessageId]()
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				s.Add(ids[i])
			}
		}
		out = append(out, s)
	}
	return out
}

// idSetKey renders a set of ids into a canonical, order-independent
// cache key.
func idSetKey(s mapset.Set[message.MessageId]) string {
	ids := make([]message.MessageId, 0, s.Cardinality())
	for id := range s.Iter() {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
