package message

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCIDIsDeterministic(t *testing.T) {
	coffer := mapset.NewThreadUnsafeSet[MessageId](
		MessageId{Process: "bob", Counter: 0},
		MessageId{Process: "alice", Counter: 1},
	)
	m := NewMessage(MessageId{Process: "alice", Counter: 2}, 1, coffer)

	first, err := ComputeCID(m)
	require.NoError(t, err)
	second, err := ComputeCID(m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeCIDDiffersOnRound(t *testing.T) {
	id := MessageId{Process: "alice", Counter: 0}
	a, err := ComputeCID(NewMessage(id, 0, nil))
	require.NoError(t, err)
	b, err := ComputeCID(NewMessage(id, 1, nil))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestComputeCIDIgnoresCofferOrder(t *testing.T) {
	id := MessageId{Process: "alice", Counter: 1}
	predA := MessageId{Process: "alice", Counter: 0}
	predB := MessageId{Process: "bob", Counter: 0}

	m1 := NewMessage(id, 1, mapset.NewThreadUnsafeSet[MessageId](predA, predB))
	m2 := NewMessage(id, 1, mapset.NewThreadUnsafeSet[MessageId](predB, predA))

	a, err := ComputeCID(m1)
	require.NoError(t, err)
	b, err := ComputeCID(m2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeCIDRejectsNilMessage(t *testing.T) {
	_, err := ComputeCID(nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
