package round

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systemshift/dagvdf/message"
	"github.com/systemshift/dagvdf/oracle"
)

func TestNewProcessRejectsByzantineWithoutOracle(t *testing.T) {
	store := message.NewMemoryStore(nil)
	_, err := NewProcess("p1", true, 2, nil, store, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestNewProcessRejectsZeroPeriod(t *testing.T) {
	store := message.NewMemoryStore(nil)
	_, err := NewProcess("p1", false, 0, nil, store, nil, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestProcessWellBehavedRoundZeroEmission(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 2, []message.Process{"p1"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, p.TickStart(0, message.View{}))
	pending := p.Pending()
	require.NotNil(t, pending)
	assert.EqualValues(t, 0, pending.Round)
	assert.Equal(t, 0, pending.Coffer.Cardinality())

	msg, err := p.TickEnd(1, message.View{})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Nil(t, p.Pending())

	got, ok := store.Get(message.MessageId{Process: "p1", Counter: 0})
	require.True(t, ok)
	assert.EqualValues(t, 0, got.Round)
}

func TestProcessWellBehavedAdvancesRoundAcrossPeriods(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 2, []message.Process{"p1"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	for tick := uint64(0); tick < 2; tick++ {
		require.NoError(t, p.TickStart(tick, store.Snapshot()))
		if _, err := p.TickEnd(tick, store.Snapshot()); err != nil {
			require.NoError(t, err)
		}
		_ = ctx
	}
	// After ticks 0,1: round-0 message appended.
	require.Len(t, store.Snapshot(), 1)

	for tick := uint64(2); tick < 4; tick++ {
		require.NoError(t, p.TickStart(tick, store.Snapshot()))
		_, err := p.TickEnd(tick, store.Snapshot())
		require.NoError(t, err)
	}

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	second, ok := store.Get(message.MessageId{Process: "p1", Counter: 1})
	require.True(t, ok)
	assert.EqualValues(t, 1, second.Round)
	assert.True(t, second.Coffer.Contains(message.MessageId{Process: "p1", Counter: 0}))
}

func TestProcessWellBehavedRetriesOnIncompleteView(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 1, []message.Process{"p1"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	dangling := message.View{
		message.MessageId{Process: "p1", Counter: 0}: message.NewMessage(
			message.MessageId{Process: "p1", Counter: 0}, 1,
			mapset.NewThreadUnsafeSet[message.MessageId](message.MessageId{Process: "ghost", Counter: 0}),
		),
	}
	require.NoError(t, p.TickStart(0, dangling))
	assert.Nil(t, p.Pending(), "an incomplete view must not produce a pending message")
}

func TestProcessByzantineUsesOracle(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	want := mapset.NewThreadUnsafeSet[message.MessageId](message.MessageId{Process: "x", Counter: 0})
	o := &oracle.WorstCaseOracle{
		ChooseFunc: func(message.View, uint64) (uint64, mapset.Set[message.MessageId]) {
			return 7, want
		},
	}
	p, err := NewProcess("adv", true, 1, nil, store, o, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, p.TickStart(0, message.View{}))
	pending := p.Pending()
	require.NotNil(t, pending)
	assert.EqualValues(t, 7, pending.Round)
	assert.True(t, pending.Coffer.Equal(want))
}

func TestProcessByzantineSkipsSafetyCheck(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	o := &oracle.WorstCaseOracle{
		ChooseFunc: func(message.View, uint64) (uint64, mapset.Set[message.MessageId]) {
			return 1, mapset.NewThreadUnsafeSet[message.MessageId]()
		},
	}
	p, err := NewProcess("adv", true, 1, []message.Process{"a", "b"}, store, o, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, p.TickStart(0, message.View{}))
	// round=1 with an empty coffer would fail checkSafety for a
	// well-behaved process, but must be accepted unchecked here.
	_, err = p.TickEnd(0, message.View{})
	assert.NoError(t, err)
}

func TestCheckSafetyRejectsMissingWellBehavedPredecessor(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 1, []message.Process{"p1", "p2"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	pred := message.MessageId{Process: "p2", Counter: 0}
	view := message.View{pred: message.NewMessage(pred, 0, nil)}
	pending := message.NewMessage(message.MessageId{Process: "p1", Counter: 1}, 1, mapset.NewThreadUnsafeSet[message.MessageId]())

	err = p.checkSafety(pending, view)
	assert.ErrorIs(t, err, ErrSafetyViolation)
}

func TestCheckSafetyRejectsWeakMajority(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 1, []message.Process{"p1", "p2"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	a := message.MessageId{Process: "p1", Counter: 0}
	b := message.MessageId{Process: "p2", Counter: 0}
	byz1 := message.MessageId{Process: "byz1", Counter: 0}
	byz2 := message.MessageId{Process: "byz2", Counter: 0}
	view := message.View{
		a:    message.NewMessage(a, 0, nil),
		b:    message.NewMessage(b, 0, nil),
		byz1: message.NewMessage(byz1, 0, nil),
		byz2: message.NewMessage(byz2, 0, nil),
	}
	// coffer names both well-behaved predecessors but also two others,
	// so the well-behaved pair is exactly half, not a strict majority
	// (2*2 = 4 is not > 4).
	coffer := mapset.NewThreadUnsafeSet[message.MessageId](a, b, byz1, byz2)
	pending := message.NewMessage(message.MessageId{Process: "p1", Counter: 1}, 1, coffer)

	err = p.checkSafety(pending, view)
	assert.ErrorIs(t, err, ErrSafetyViolation)
}

func TestCheckSafetyAcceptsRoundZero(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	p, err := NewProcess("p1", false, 1, []message.Process{"p1"}, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	pending := message.NewMessage(message.MessageId{Process: "p1", Counter: 0}, 0, nil)
	assert.NoError(t, p.checkSafety(pending, message.View{}))
}

// S6: with tAdv=2, an adversary can advance past round 2 within the
// first 6 ticks by always nudging its round up by one; a well-behaved
// process's own current round at the same tick is tick/tWB, so with
// tWB=3 it is independently at round 2, the adversary's faster VDF
// does not translate into an advantage the quorum requirement cannot
// absorb.
func TestScenarioS6AdversaryOutpacing(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	o := &oracle.WorstCaseOracle{
		ChooseFunc: func(view message.View, maxSeenRound uint64) (uint64, mapset.Set[message.MessageId]) {
			return maxSeenRound + 1, mapset.NewThreadUnsafeSet[message.MessageId]()
		},
	}
	p, err := NewProcess("adv", true, 2, nil, store, o, zaptest.NewLogger(t))
	require.NoError(t, err)

	for tick := uint64(0); tick <= 6; tick++ {
		require.NoError(t, p.TickStart(tick, store.Snapshot()))
		_, err := p.TickEnd(tick, store.Snapshot())
		require.NoError(t, err)
	}

	pending := p.Pending()
	require.NotNil(t, pending)
	assert.GreaterOrEqual(t, pending.Round, uint64(2))

	const tWB = uint64(3)
	wellBehavedCurrentRound := uint64(6) / tWB
	assert.EqualValues(t, 2, wellBehavedCurrentRound)
}
