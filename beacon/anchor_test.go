package beacon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/dagvdf/message"
)

func TestAnchorDigestIsOrderIndependent(t *testing.T) {
	a := message.MessageId{Process: "alice", Counter: 0}
	b := message.MessageId{Process: "bob", Counter: 0}

	v1 := message.View{a: message.NewMessage(a, 0, nil), b: message.NewMessage(b, 0, nil)}
	v2 := message.View{b: message.NewMessage(b, 0, nil), a: message.NewMessage(a, 0, nil)}

	assert.Equal(t, AnchorDigest(v1), AnchorDigest(v2))
}

func TestAnchorDigestDiffersOnMembership(t *testing.T) {
	a := message.MessageId{Process: "alice", Counter: 0}
	b := message.MessageId{Process: "bob", Counter: 0}

	v1 := message.View{a: message.NewMessage(a, 0, nil)}
	v2 := message.View{a: message.NewMessage(a, 0, nil), b: message.NewMessage(b, 0, nil)}

	assert.NotEqual(t, AnchorDigest(v1), AnchorDigest(v2))
}

func TestAnchorRound(t *testing.T) {
	mockRound := drandResponse{
		Round:      42,
		Randomness: hex.EncodeToString([]byte("random-bytes")),
		Signature:  hex.EncodeToString([]byte("signature-bytes")),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(mockRound))
	}))
	defer server.Close()

	b, err := NewBeacon(Config{
		URL:       server.URL,
		ChainHash: []byte("chain-hash"),
		PublicKey: []byte("public-key"),
		Period:    time.Second,
	})
	require.NoError(t, err)

	id := message.MessageId{Process: "alice", Counter: 0}
	accepted := message.View{id: message.NewMessage(id, 0, nil)}

	anchor, err := AnchorRound(context.Background(), b, 3, accepted)
	require.NoError(t, err)
	assert.EqualValues(t, 3, anchor.DAGRound)
	assert.Equal(t, AnchorDigest(accepted), anchor.Digest)
	assert.EqualValues(t, 42, anchor.Beacon.Number)
}
