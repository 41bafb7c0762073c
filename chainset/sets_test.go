package chainset

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"

	"github.com/systemshift/dagvdf/message"
)

func id(n uint64) message.MessageId {
	return message.MessageId{Process: "p", Counter: n}
}

func idSet(ns ...uint64) mapset.Set[message.MessageId] {
	s := mapset.NewThreadUnsafeSet[message.MessageId]()
	for _, n := range ns {
		s.Add(id(n))
	}
	return s
}

// S1: Intersection laws.
func TestIntersectionLaws(t *testing.T) {
	assert.True(t, Intersection([]mapset.Set[message.MessageId]{}).Cardinality() == 0)

	single := idSet(1, 2)
	assert.True(t, Intersection([]mapset.Set[message.MessageId]{single}).Equal(single))

	got := Intersection([]mapset.Set[message.MessageId]{idSet(1, 2), idSet(2, 3)})
	assert.True(t, got.Equal(idSet(2)))

	disjoint := Intersection([]mapset.Set[message.MessageId]{idSet(1, 2), idSet(3, 4)})
	assert.Equal(t, 0, disjoint.Cardinality())
}

// U3: Intersection fold law.
func TestIntersectionFoldsPairwise(t *testing.T) {
	a, b, c := idSet(1, 2, 3), idSet(2, 3, 4), idSet(3, 4, 5)
	whole := Intersection([]mapset.Set[message.MessageId]{a, b, c})
	stepwise := Intersection([]mapset.Set[message.MessageId]{a, b}).Intersect(c)
	assert.True(t, whole.Equal(stepwise))
}

func TestStrictMajority(t *testing.T) {
	assert.True(t, StrictMajority(idSet(1, 2), idSet(1, 2, 3)))
	assert.False(t, StrictMajority(idSet(1), idSet(1, 2)))
	assert.False(t, StrictMajority(mapset.NewThreadUnsafeSet[message.MessageId](), idSet(1)))
}
