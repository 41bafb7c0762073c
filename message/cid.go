package message

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID computes a content-addressed presentation id for a
// message: process, counter, round, and the sorted coffer ids. This is
// a wire/log convenience only, the algebra never looks at it, and two
// messages that differ only in which CID library version produced
// their digest are still compared by MessageId equality everywhere
// that matters.
func ComputeCID(m *Message) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}

	data, err := serializeContent(m)
	if err != nil {
		return "", fmt.Errorf("serializing message: %w", err)
	}

	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hashing message: %w", err)
	}

	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

func serializeContent(m *Message) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeString(&buf, string(m.ID.Process)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, m.ID.Counter); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, m.Round); err != nil {
		return nil, err
	}

	coffer := m.Coffer.ToSlice()
	ids := make([]MessageId, len(coffer))
	copy(ids, coffer)
	view := View{}
	for _, id := range ids {
		view[id] = &Message{ID: id}
	}
	sorted := view.SortedIDs()

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(sorted))); err != nil {
		return nil, err
	}
	for _, id := range sorted {
		if err := writeString(&buf, string(id.Process)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, id.Counter); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}
