package message

import (
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// wireMessage is the JSON-serializable form of a Message. mapset.Set
// does not marshal on its own, so the coffer is flattened to a sorted
// slice on the way out and rebuilt on the way in.
type wireMessage struct {
	Process string      `json:"process"`
	Counter uint64      `json:"counter"`
	Round   uint64      `json:"round"`
	Coffer  []wireID    `json:"coffer"`
}

type wireID struct {
	Process string `json:"process"`
	Counter uint64 `json:"counter"`
}

// Export serializes v to JSON, in a stable (sorted-by-id) order so two
// exports of an identical view produce byte-identical output.
func (v View) Export() ([]byte, error) {
	ids := v.SortedIDs()
	out := make([]wireMessage, 0, len(ids))
	for _, id := range ids {
		m := v[id]
		cofferIDs := m.Coffer.ToSlice()
		cofferView := View{}
		for _, cid := range cofferIDs {
			cofferView[cid] = &Message{ID: cid}
		}
		sortedCoffer := cofferView.SortedIDs()

		wire := wireMessage{
			Process: string(m.ID.Process),
			Counter: m.ID.Counter,
			Round:   m.Round,
			Coffer:  make([]wireID, 0, len(sortedCoffer)),
		}
		for _, cid := range sortedCoffer {
			wire.Coffer = append(wire.Coffer, wireID{Process: string(cid.Process), Counter: cid.Counter})
		}
		out = append(out, wire)
	}

	return json.MarshalIndent(out, "", "  ")
}

// Import parses JSON produced by Export (or any compatible producer)
// into a fresh View. It does not validate completeness or round
// consistency; callers that need those checks should feed the result
// through a Store.
func Import(data []byte) (View, error) {
	var wire []wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshaling view: %w", err)
	}

	out := View{}
	for _, w := range wire {
		coffer := mapset.NewThreadUnsafeSet[MessageId]()
		for _, c := range w.Coffer {
			coffer.Add(MessageId{Process: Process(c.Process), Counter: c.Counter})
		}
		id := MessageId{Process: Process(w.Process), Counter: w.Counter}
		out[id] = NewMessage(id, w.Round, coffer)
	}
	return out, nil
}
