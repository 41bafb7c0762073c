package message

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store is the DAG store: an append-only, id-unique collection of
// messages. Add enforces the invariants that can be checked
// locally (id uniqueness, round-0 emptiness, and round consistency
// against whatever predecessors are already present); it never
// requires the DAG to be Complete, since dangling coffer entries are
// tolerated until the referenced message arrives.
type Store interface {
	// Add validates and appends msg. A malformed message is dropped
	// (not stored) and counted; the returned error wraps
	// ErrDuplicateID or ErrMalformedRound so callers can distinguish
	// a drop from a transport failure.
	Add(ctx context.Context, msg *Message) error

	// Get looks up a single message by id.
	Get(id MessageId) (*Message, bool)

	// Snapshot returns a point-in-time copy of the local view, safe to
	// read without holding the store's lock.
	Snapshot() View

	// DroppedCount returns the number of messages dropped for
	// malformation since the store was created.
	DroppedCount() uint64
}

type memoryStore struct {
	mu      sync.RWMutex
	events  View
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory Store. A nil logger is
// replaced with zap.NewNop().
func NewMemoryStore(logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryStore{events: View{}, logger: logger}
}

func (s *memoryStore) Add(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateForAdd(s.events, msg, &s.dropped, s.logger); err != nil {
		return err
	}

	s.events[msg.ID] = msg
	return nil
}

// validateForAdd enforces the invariants every Store.Add implementation
// checks before persisting a message: id uniqueness, round-0 emptiness,
// and round consistency against whatever predecessors are already
// present in events. A malformed message bumps dropped and logs a
// warning before returning the matching sentinel error.
func validateForAdd(events View, msg *Message, dropped *atomic.Uint64, logger *zap.Logger) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if msg.ID.Process == "" {
		return fmt.Errorf("%w: empty process id", ErrInvalidMessage)
	}

	if _, exists := events[msg.ID]; exists {
		dropped.Add(1)
		logger.Warn("dropping message with duplicate id", zap.Stringer("id", msg.ID))
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}

	if msg.Round == 0 && msg.Coffer.Cardinality() > 0 {
		dropped.Add(1)
		logger.Warn("dropping round-0 message with non-empty coffer", zap.Stringer("id", msg.ID))
		return fmt.Errorf("%w: round-0 message %s has non-empty coffer", ErrMalformedRound, msg.ID)
	}

	for id := range msg.Coffer.Iter() {
		pred, ok := events[id]
		if !ok {
			continue // dangling reference tolerated on an incomplete DAG
		}
		if msg.Round == 0 || pred.Round != msg.Round-1 {
			dropped.Add(1)
			logger.Warn("dropping message with round-inconsistent predecessor",
				zap.Stringer("id", msg.ID), zap.Stringer("predecessor", id))
			return fmt.Errorf("%w: %s names predecessor %s at round %d, expected %d",
				ErrMalformedRound, msg.ID, id, pred.Round, msg.Round-1)
		}
	}

	return nil
}

func (s *memoryStore) Get(id MessageId) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.events[id]
	return m, ok
}

func (s *memoryStore) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Clone()
}

func (s *memoryStore) DroppedCount() uint64 {
	return s.dropped.Load()
}
