// Package chainset implements the chain-selection algebra: set
// primitives, the consistency predicates, chain enumeration, weight and
// component selection, and the acceptance rule that turns a raw DAG
// view into a set of committed messages.
package chainset

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Intersection returns the intersection of a finite list of sets: the
// empty set when sets is empty, the sole member when it is a
// singleton, and the pairwise fold otherwise. Order-independent.
func Intersection[T comparable](sets []mapset.Set[T]) mapset.Set[T] {
	if len(sets) == 0 {
		return mapset.NewThreadUnsafeSet[T]()
	}
	result := sets[0].Clone()
	for _, s := range sets[1:] {
		result = result.Intersect(s)
	}
	return result
}

// StrictMajority reports whether s is a strict majority of t: 2·|s| >
// |t|. The universal quorum predicate used throughout this package.
func StrictMajority[T comparable](s, t mapset.Set[T]) bool {
	return 2*s.Cardinality() > t.Cardinality()
}
