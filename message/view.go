package message

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// View is a finite set of messages, keyed by id. It is the concrete
// representation of "a set of messages M" throughout the chainset
// algebra: a Chain is simply a View that happens to be a subset of a
// larger one.
type View map[MessageId]*Message

// Clone returns a shallow copy (messages are not duplicated, only the
// map is) safe to mutate independently.
func (v View) Clone() View {
	out := make(View, len(v))
	for id, m := range v {
		out[id] = m
	}
	return out
}

// Merge adds every message of other into v, in place.
func (v View) Merge(other View) {
	for id, m := range other {
		v[id] = m
	}
}

// IDs returns the set of ids present in v.
func (v View) IDs() mapset.Set[MessageId] {
	s := mapset.NewThreadUnsafeSet[MessageId]()
	for id := range v {
		s.Add(id)
	}
	return s
}

// SortedIDs returns v's ids in a fixed, deterministic order.
func (v View) SortedIDs() []MessageId {
	ids := make([]MessageId, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// MaxRound returns the greatest round present in v, or 0 for an empty
// view.
func (v View) MaxRound() uint64 {
	var max uint64
	first := true
	for _, m := range v {
		if first || m.Round > max {
			max = m.Round
			first = false
		}
	}
	return max
}

// ByRound returns the sub-view of messages with exactly the given
// round.
func (v View) ByRound(round uint64) View {
	out := View{}
	for id, m := range v {
		if m.Round == round {
			out[id] = m
		}
	}
	return out
}

// BelowRound returns the sub-view of messages with round strictly less
// than the given round.
func (v View) BelowRound(round uint64) View {
	out := View{}
	for id, m := range v {
		if m.Round < round {
			out[id] = m
		}
	}
	return out
}

// Complete reports whether v satisfies the completeness invariant: for
// every message and every id in its coffer, the referenced message is
// present in v with round exactly one less than the referencing
// message's round.
func (v View) Complete() bool {
	for _, m := range v {
		for id := range m.Coffer.Iter() {
			pred, ok := v[id]
			if !ok {
				return false
			}
			if m.Round == 0 || pred.Round != m.Round-1 {
				return false
			}
		}
	}
	return true
}

// FromIDs restricts v to exactly the given ids (ids absent from v are
// silently skipped, callers are expected to pass ids known to exist).
func (v View) FromIDs(ids []MessageId) View {
	out := View{}
	for _, id := range ids {
		if m, ok := v[id]; ok {
			out[id] = m
		}
	}
	return out
}
