package chainset

import (
	"github.com/systemshift/dagvdf/message"
)

// Accepted returns the subset of m that never lies on the strictly
// lighter side of a disjoint strongly-consistent-chain fork: a message
// is excluded iff there exist strongly-consistent chains C1, C2 of m
// with the message in C1 but not C2, C1 and C2 disjoint, and |C1| <
// |C2|. This is the commit predicate a well-behaved process evaluates
// on its own view before starting a new VDF.
func Accepted(m message.View) message.View {
	chains := StronglyConsistentChains(m)
	out := message.View{}

candidates:
	for id, msg := range m {
		for _, c1 := range chains {
			if _, in1 := c1[id]; !in1 {
				continue
			}
			for _, c2 := range chains {
				if _, in2 := c2[id]; in2 {
					continue
				}
				if Weight(c1) < Weight(c2) && Disjoint(c1, c2) {
					continue candidates
				}
			}
		}
		out[id] = msg
	}
	return out
}
