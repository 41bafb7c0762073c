package beacon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/systemshift/dagvdf/message"
)

// Anchor ties a digest of an accepted round's message set to an
// external drand round, letting an auditor later prove the digest
// existed no earlier than drand round Beacon.Number. This is not the
// VDF: the tick/round state machine never consults an Anchor, and a
// node that never anchors behaves identically for chain selection.
type Anchor struct {
	// DAGRound is the accepted round this anchor covers.
	DAGRound uint64

	// Digest is AnchorDigest's output over that round's accepted set.
	Digest string

	// Beacon is the drand round the digest was paired with.
	Beacon *Round
}

// AnchorDigest computes a deterministic digest over accepted's sorted
// message ids. Two views with the same membership produce the same
// digest regardless of insertion order.
func AnchorDigest(accepted message.View) string {
	h := sha256.New()
	for _, id := range accepted.SortedIDs() {
		h.Write([]byte(id.String()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AnchorRound fetches the latest beacon round and pairs it with a
// digest of accepted at dagRound.
func AnchorRound(ctx context.Context, b Beacon, dagRound uint64, accepted message.View) (*Anchor, error) {
	round, err := b.GetLatestRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching latest beacon round: %w", err)
	}
	return &Anchor{
		DAGRound: dagRound,
		Digest:   AnchorDigest(accepted),
		Beacon:   round,
	}, nil
}
