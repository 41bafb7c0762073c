package chainset

import (
	"sort"

	"github.com/systemshift/dagvdf/message"
)

// Weight is a chain's cardinality.
func Weight(c message.View) int {
	return len(c)
}

// HeaviestConsistentChain returns a deterministic representative of
// maximum weight among ConsistentChains(m), or nil if none exist.
// Ties are broken lexicographically on each candidate's sorted id
// list, per the documented CHOOSE-operator resolution, never
// invented beyond that documented rule.
func HeaviestConsistentChain(m message.View) message.View {
	return pickHeaviest(ConsistentChains(m))
}

// HeaviestConsistentChains returns every ConsistentChains(m) member of
// maximum weight, in the same deterministic tie-break order
// HeaviestConsistentChain uses to pick its representative.
func HeaviestConsistentChains(m message.View) []message.View {
	return maximalByWeight(ConsistentChains(m))
}

// HeaviestStronglyConsistentChain is the StronglyConsistentChain
// analogue of HeaviestConsistentChain.
func HeaviestStronglyConsistentChain(m message.View) message.View {
	return pickHeaviest(StronglyConsistentChains(m))
}

// HeaviestStronglyConsistentChains is the StronglyConsistentChain
// analogue of HeaviestConsistentChains.
func HeaviestStronglyConsistentChains(m message.View) []message.View {
	return maximalByWeight(StronglyConsistentChains(m))
}

func pickHeaviest(chains []message.View) message.View {
	maxima := maximalByWeight(chains)
	if len(maxima) == 0 {
		return nil
	}
	return maxima[0]
}

func maximalByWeight(chains []message.View) []message.View {
	if len(chains) == 0 {
		return nil
	}

	max := 0
	for _, c := range chains {
		if Weight(c) > max {
			max = Weight(c)
		}
	}

	out := make([]message.View, 0)
	for _, c := range chains {
		if Weight(c) == max {
			out = append(out, c)
		}
	}
	sortChainsLexicographically(out)
	return out
}

// sortChainsLexicographically orders chains by the lexicographic order
// of their sorted message-id lists.
func sortChainsLexicographically(chains []message.View) {
	sort.Slice(chains, func(i, j int) bool { return lessChain(chains[i], chains[j]) })
}

func lessChain(a, b message.View) bool {
	ai, bi := a.SortedIDs(), b.SortedIDs()
	for k := 0; k < len(ai) && k < len(bi); k++ {
		if ai[k] != bi[k] {
			return ai[k].Less(bi[k])
		}
	}
	return len(ai) < len(bi)
}
