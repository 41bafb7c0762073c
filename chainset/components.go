package chainset

import (
	"sort"

	"github.com/systemshift/dagvdf/message"
)

// Disjoint reports whether c1 and c2, which must share the same
// maximum round to be comparable, diverged at some earlier round:
// some round r in [0, rmax) where they share no message. The
// predicate is only defined for equal-rmax chains; a pair at
// different depths is never treated as a fork (a shorter chain is
// more likely a prefix of the longer one than a genuine divergence),
// so mismatched rounds report not-disjoint rather than trivially
// disjoint.
func Disjoint(c1, c2 message.View) bool {
	r1, r2 := c1.MaxRound(), c2.MaxRound()
	if r1 != r2 {
		return false
	}

	rmax := r1
	for r := uint64(0); r < rmax; r++ {
		l1 := c1.ByRound(r).IDs()
		l2 := c2.ByRound(r).IDs()
		if l1.Intersect(l2).Cardinality() == 0 {
			return true
		}
	}
	return false
}

// Components partitions cs into maximal groups transitively linked by
// non-disjointness: two chains land in the same component iff there is
// a chain of pairwise-non-disjoint links between them.
func Components(cs []message.View) [][]message.View {
	n := len(cs)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !Disjoint(cs[i], cs[j]) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]message.View)
	for i, c := range cs {
		root := find(i)
		groups[root] = append(groups[root], c)
	}

	out := make([][]message.View, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// HeaviestComponent runs Components over StronglyConsistentChains(m)
// and returns the union of the component with the greatest total
// weight, breaking ties the same deterministic way weight.go does.
func HeaviestComponent(m message.View) message.View {
	chains := StronglyConsistentChains(m)
	comps := Components(chains)
	if len(comps) == 0 {
		return nil
	}

	unions := make([]message.View, 0, len(comps))
	for _, comp := range comps {
		union := message.View{}
		for _, c := range comp {
			union.Merge(c)
		}
		unions = append(unions, union)
	}

	sort.Slice(unions, func(i, j int) bool {
		if Weight(unions[i]) != Weight(unions[j]) {
			return Weight(unions[i]) > Weight(unions[j])
		}
		return lessChain(unions[i], unions[j])
	})
	return unions[0]
}
