package round

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systemshift/dagvdf/message"
	"github.com/systemshift/dagvdf/oracle"
)

func newWellBehavedOnlySimulator(t *testing.T, maxTick uint64) (*Simulator, message.Store) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	cfg := Config{
		Processes: procs("p1", "p2", "p3"),
		TWB:       2,
		TAdv:      1,
		MaxTick:   maxTick,
	}
	wb := cfg.WellBehaved()

	procMap := map[message.Process]*Process{}
	for _, id := range wb {
		p, err := NewProcess(id, false, cfg.TWB, wb, store, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		procMap[id] = p
	}

	return NewSimulator(cfg, store, procMap, zaptest.NewLogger(t)), store
}

func TestSimulatorRunProducesRoundZeroForAllProcesses(t *testing.T) {
	sim, store := newWellBehavedOnlySimulator(t, 2)
	require.NoError(t, sim.Run(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap, 3)
	for _, p := range []message.Process{"p1", "p2", "p3"} {
		m, ok := store.Get(message.MessageId{Process: p, Counter: 0})
		require.True(t, ok)
		assert.EqualValues(t, 0, m.Round)
	}
}

func TestSimulatorRunAdvancesToRoundOneWithSafety(t *testing.T) {
	sim, store := newWellBehavedOnlySimulator(t, 4)
	require.NoError(t, sim.Run(context.Background()))

	snap := store.Snapshot()
	require.Len(t, snap, 6)
	for _, p := range []message.Process{"p1", "p2", "p3"} {
		m, ok := store.Get(message.MessageId{Process: p, Counter: 1})
		require.True(t, ok)
		assert.EqualValues(t, 1, m.Round)
		assert.Equal(t, 3, m.Coffer.Cardinality(), "round-1 coffer should name all three round-0 messages")
	}
}

func TestSimulatorClockTickAdvancesWithRun(t *testing.T) {
	sim, _ := newWellBehavedOnlySimulator(t, 3)
	require.NoError(t, sim.Run(context.Background()))
	assert.EqualValues(t, 3, sim.Clock.Tick())
}

func TestSimulatorWithByzantineProcessDoesNotBlockWellBehaved(t *testing.T) {
	store := message.NewMemoryStore(zaptest.NewLogger(t))
	cfg := Config{
		Processes: procs("p1", "p2", "adv"),
		Byzantine: procs("adv"),
		TWB:       2,
		TAdv:      1,
		MaxTick:   4,
	}
	wb := cfg.WellBehaved()

	o := oracle.NewRandomOracle(3)
	procMap := map[message.Process]*Process{}
	for _, id := range wb {
		p, err := NewProcess(id, false, cfg.TWB, wb, store, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		procMap[id] = p
	}
	adv, err := NewProcess("adv", true, cfg.TAdv, wb, store, o, zaptest.NewLogger(t))
	require.NoError(t, err)
	procMap["adv"] = adv

	sim := NewSimulator(cfg, store, procMap, zaptest.NewLogger(t))
	require.NoError(t, sim.Run(context.Background()))

	for _, p := range []message.Process{"p1", "p2"} {
		_, ok := store.Get(message.MessageId{Process: p, Counter: 1})
		assert.True(t, ok, "%s should have reached round 1 despite a byzantine peer", p)
	}
}
