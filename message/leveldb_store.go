package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"
)

// leveldbStore is a Store backed by goleveldb: every accepted message
// is durably persisted under its id, and an in-memory View mirrors the
// database so Snapshot never touches disk. It shares validateForAdd
// with memoryStore; only the persistence medium differs.
type leveldbStore struct {
	mu      sync.RWMutex
	db      *leveldb.DB
	cache   View
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewLevelDBStore opens (creating if absent) a leveldb database at dir
// and loads its contents into memory. The returned Store owns db and
// must be closed with Close when the caller is done with it.
func NewLevelDBStore(dir string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb store at %s: %w", dir, err)
	}

	cache, err := loadCache(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading leveldb store: %w", err)
	}

	return &leveldbStore{db: db, cache: cache, logger: logger}, nil
}

func loadCache(db *leveldb.DB) (View, error) {
	cache := View{}
	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var wire wireMessage
		if err := json.Unmarshal(iter.Value(), &wire); err != nil {
			return nil, fmt.Errorf("decoding stored message: %w", err)
		}
		msg := wireToMessage(wire)
		cache[msg.ID] = msg
	}
	return cache, iter.Error()
}

func (s *leveldbStore) Add(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateForAdd(s.cache, msg, &s.dropped, s.logger); err != nil {
		return err
	}

	data, err := json.Marshal(messageToWire(msg))
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", msg.ID, err)
	}
	if err := s.db.Put([]byte(msg.ID.String()), data, nil); err != nil {
		return fmt.Errorf("persisting message %s: %w", msg.ID, err)
	}

	s.cache[msg.ID] = msg
	return nil
}

func (s *leveldbStore) Get(id MessageId) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.cache[id]
	return m, ok
}

func (s *leveldbStore) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Clone()
}

func (s *leveldbStore) DroppedCount() uint64 {
	return s.dropped.Load()
}

// Close releases the underlying leveldb handle.
func (s *leveldbStore) Close() error {
	return s.db.Close()
}

func messageToWire(m *Message) wireMessage {
	cofferIDs := m.Coffer.ToSlice()
	cofferView := View{}
	for _, cid := range cofferIDs {
		cofferView[cid] = &Message{ID: cid}
	}
	sorted := cofferView.SortedIDs()

	wire := wireMessage{
		Process: string(m.ID.Process),
		Counter: m.ID.Counter,
		Round:   m.Round,
		Coffer:  make([]wireID, 0, len(sorted)),
	}
	for _, cid := range sorted {
		wire.Coffer = append(wire.Coffer, wireID{Process: string(cid.Process), Counter: cid.Counter})
	}
	return wire
}

func wireToMessage(w wireMessage) *Message {
	coffer := mapset.NewThreadUnsafeSet[MessageId]()
	for _, c := range w.Coffer {
		coffer.Add(MessageId{Process: Process(c.Process), Counter: c.Counter})
	}
	id := MessageId{Process: Process(w.Process), Counter: w.Counter}
	return NewMessage(id, w.Round, coffer)
}
