// Package message defines the DAG's data model: message identity, the
// coffer of declared predecessors, and the round tag a process attaches
// to its own message.
package message

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Process is an opaque process identifier. The algebra never inspects
// it beyond equality; it exists to make MessageId a (process, counter)
// pair as spec'd.
type Process string

// MessageId uniquely identifies a message across a DAG. A (process,
// counter) pair suffices: the algebra depends only on equality.
type MessageId struct {
	Process Process
	Counter uint64
}

func (id MessageId) String() string {
	return fmt.Sprintf("%s#%d", id.Process, id.Counter)
}

// Less gives MessageId a total order, used only for deterministic
// tie-breaking (never for algebra correctness).
func (id MessageId) Less(other MessageId) bool {
	if id.Process != other.Process {
		return id.Process < other.Process
	}
	return id.Counter < other.Counter
}

// Message is a DAG node: an id, a self-declared round, and the coffer
// of predecessor ids the message names. Round is not trusted to be the
// true causal depth.
type Message struct {
	ID     MessageId
	Round  uint64
	Coffer mapset.Set[MessageId]
}

// NewMessage builds a Message with a non-nil coffer.
func NewMessage(id MessageId, round uint64, coffer mapset.Set[MessageId]) *Message {
	if coffer == nil {
		coffer = mapset.NewThreadUnsafeSet[MessageId]()
	}
	return &Message{ID: id, Round: round, Coffer: coffer}
}

// Clone returns a deep copy safe to mutate independently of m.
func (m *Message) Clone() *Message {
	return &Message{ID: m.ID, Round: m.Round, Coffer: m.Coffer.Clone()}
}
