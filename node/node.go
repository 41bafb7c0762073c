// Package node wires the message store, the chain-selection algebra,
// the round/tick state machine, the adversary oracle, transport,
// beacon anchoring, and the inspection API into one runnable process.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/beacon"
	"github.com/systemshift/dagvdf/chainset"
	"github.com/systemshift/dagvdf/httpapi"
	"github.com/systemshift/dagvdf/message"
	"github.com/systemshift/dagvdf/network"
	"github.com/systemshift/dagvdf/oracle"
	"github.com/systemshift/dagvdf/round"
)

// Config is a node's full boot configuration: the round/tick
// parameters plus the optional ambient services layered on top.
type Config struct {
	Round round.Config

	// StorePath, if non-empty, persists the message store to a
	// leveldb database at this path instead of keeping it in memory.
	StorePath string

	EnableNetwork bool
	Network       network.Config

	EnableBeacon   bool
	Beacon         beacon.Config
	BeaconInterval time.Duration
	// AnchorEvery anchors the accepted set to the beacon every N
	// accepted rounds; 0 disables anchoring even when the beacon is
	// enabled.
	AnchorEvery uint64

	// HTTPAddr, if non-empty, starts the read-only inspection API.
	HTTPAddr string
}

// ErrInvalidConfig indicates the node configuration is invalid.
var ErrInvalidConfig = fmt.Errorf("node: invalid configuration")

// ValidateConfig validates cfg, including the embedded round.Config's
// rate invariant.
func ValidateConfig(cfg Config, logger *zap.Logger) error {
	if err := cfg.Round.Validate(logger); err != nil {
		return err
	}
	if cfg.EnableBeacon && cfg.BeaconInterval <= 0 {
		return fmt.Errorf("%w: BeaconInterval must be positive when the beacon is enabled", ErrInvalidConfig)
	}
	return nil
}

// Node is a complete DAG-time participant set running under one
// process: every configured process (well-behaved and Byzantine)
// stepped by a single Simulator over a shared Store.
type Node struct {
	cfg    Config
	store  message.Store
	sim    *round.Simulator
	trans  *network.Transport
	bcn    beacon.Beacon
	http   *httpapi.Server
	logger *zap.Logger

	mu           sync.Mutex
	anchors      []*beacon.Anchor
	lastAnchored uint64
}

// New builds a Node from cfg. On any failure of an optional component
// after the store and simulator exist, previously-started components
// are torn down before returning the error.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidateConfig(cfg, logger); err != nil {
		return nil, err
	}

	var store message.Store
	if cfg.StorePath != "" {
		s, err := message.NewLevelDBStore(cfg.StorePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening message store: %w", err)
		}
		store = s
	} else {
		store = message.NewMemoryStore(logger)
	}
	wb := cfg.Round.WellBehaved()

	procs := make(map[message.Process]*round.Process, len(cfg.Round.Processes))
	for _, id := range cfg.Round.Processes {
		var oc oracle.Oracle
		byzantine := cfg.Round.IsByzantine(id)
		if byzantine {
			oc = oracle.NewRandomOracle(seedFor(id))
		}
		p, err := round.NewProcess(id, byzantine, cfg.Round.PeriodFor(id), wb, store, oc, logger)
		if err != nil {
			return nil, fmt.Errorf("creating process %s: %w", id, err)
		}
		procs[id] = p
	}

	n := &Node{
		cfg:    cfg,
		store:  store,
		sim:    round.NewSimulator(cfg.Round, store, procs, logger),
		logger: logger,
	}

	if cfg.EnableNetwork {
		t, err := network.NewTransport(ctx, cfg.Network, logger)
		if err != nil {
			_ = n.Close()
			return nil, fmt.Errorf("starting transport: %w", err)
		}
		n.trans = t
	}

	if cfg.EnableBeacon {
		b, err := beacon.NewBeacon(cfg.Beacon)
		if err != nil {
			_ = n.Close()
			return nil, fmt.Errorf("creating beacon: %w", err)
		}
		if err := b.Start(ctx, cfg.BeaconInterval); err != nil {
			_ = n.Close()
			return nil, fmt.Errorf("starting beacon: %w", err)
		}
		n.bcn = b
	}

	if cfg.HTTPAddr != "" {
		n.http = httpapi.NewServer(cfg.HTTPAddr, n, logger)
		n.http.Start()
	}

	return n, nil
}

// seedFor derives a deterministic RandomOracle seed from a process id
// so repeated runs of the same configuration reproduce the same
// adversarial schedule.
func seedFor(id message.Process) int64 {
	var seed int64
	for _, r := range string(id) {
		seed = seed*31 + int64(r)
	}
	return seed
}

// Run drives the simulator tick by tick until MaxTick is reached (0
// means unbounded) or ctx is done. When networking is enabled,
// inbound messages are merged into the store and newly-appended
// messages are broadcast after every tick.
func (n *Node) Run(ctx context.Context) error {
	if n.trans != nil {
		go n.drainInbound(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		before := n.store.Snapshot()
		tick, err := n.sim.Step(ctx)
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		after := n.store.Snapshot()

		if n.trans != nil {
			n.broadcastNew(ctx, before, after)
		}
		n.maybeAnchor(ctx, after)

		if n.cfg.Round.MaxTick > 0 && tick+1 >= n.cfg.Round.MaxTick {
			return nil
		}
	}
}

func (n *Node) drainInbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-n.trans.Inbound():
			if !ok {
				return
			}
			if err := n.store.Add(ctx, msg); err != nil {
				n.logger.Debug("dropping inbound message", zap.Error(err))
			}
		}
	}
}

func (n *Node) broadcastNew(ctx context.Context, before, after message.View) {
	for id, msg := range after {
		if _, ok := before[id]; ok {
			continue
		}
		if err := n.trans.Broadcast(ctx, msg); err != nil {
			n.logger.Warn("broadcast failed", zap.Stringer("id", id), zap.Error(err))
		}
	}
}

// maybeAnchor anchors the accepted set's digest to the beacon every
// AnchorEvery accepted rounds, skipping rounds already anchored.
func (n *Node) maybeAnchor(ctx context.Context, view message.View) {
	if n.bcn == nil || n.cfg.AnchorEvery == 0 {
		return
	}

	accepted := chainset.Accepted(view)
	r := accepted.MaxRound()

	n.mu.Lock()
	due := r > 0 && r%n.cfg.AnchorEvery == 0 && r != n.lastAnchored
	n.mu.Unlock()
	if !due {
		return
	}

	anchor, err := beacon.AnchorRound(ctx, n.bcn, r, accepted)
	if err != nil {
		n.logger.Warn("anchoring round failed", zap.Uint64("round", r), zap.Error(err))
		return
	}

	n.mu.Lock()
	n.anchors = append(n.anchors, anchor)
	n.lastAnchored = r
	n.mu.Unlock()
}

// Anchors returns every anchor recorded so far.
func (n *Node) Anchors() []*beacon.Anchor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*beacon.Anchor(nil), n.anchors...)
}

// AcceptedView satisfies httpapi.SafetyChecker.
func (n *Node) AcceptedView() message.View {
	return chainset.Accepted(n.store.Snapshot())
}

// HeaviestChain satisfies httpapi.SafetyChecker.
func (n *Node) HeaviestChain() message.View {
	return chainset.HeaviestConsistentChain(n.store.Snapshot())
}

// DAGSnapshot satisfies httpapi.SafetyChecker.
func (n *Node) DAGSnapshot() message.View {
	return n.store.Snapshot()
}

// DroppedCount satisfies httpapi.SafetyChecker.
func (n *Node) DroppedCount() uint64 {
	return n.store.DroppedCount()
}

// IsSafe satisfies httpapi.SafetyChecker: it checks the safety
// invariant for every well-behaved process's current pending message
// against the local view.
func (n *Node) IsSafe() (bool, error) {
	view := n.store.Snapshot()
	for _, id := range n.cfg.Round.WellBehaved() {
		p, ok := n.sim.Processes[id]
		if !ok {
			continue
		}
		if err := p.Safe(view); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Store returns the underlying message store.
func (n *Node) Store() message.Store {
	return n.store
}

// Close tears down every started component, in reverse dependency
// order, collecting rather than short-circuiting on the first error.
func (n *Node) Close() error {
	var errs []error

	if n.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.http.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing http server: %w", err))
		}
	}
	if n.bcn != nil {
		if err := n.bcn.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping beacon: %w", err))
		}
	}
	if n.trans != nil {
		if err := n.trans.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing transport: %w", err))
		}
	}
	if closer, ok := n.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing node: %v", errs)
	}
	return nil
}
