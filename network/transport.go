// Package network wires the transport collaborator the external
// interface requires: a broadcast sink and an inbound stream of
// messages, implemented over libp2p host identity and GossipSub.
package network

import (
	"context"
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/message"
)

// Config is the transport's boot configuration: which port to listen
// on, an optional peer to dial, and the GossipSub topic identifying
// this DAG instance.
type Config struct {
	// Port is the port to listen on (0 for random).
	Port int

	// Peer is the multiaddr of a peer to connect to (optional).
	Peer string

	// Topic names the GossipSub topic carrying this DAG's messages.
	Topic string
}

// ErrInvalidConfig indicates the network configuration is invalid.
var ErrInvalidConfig = fmt.Errorf("network: invalid configuration")

// Transport is the broadcast sink and inbound stream: a libp2p host
// publishing to, and subscribing from, one GossipSub topic per DAG
// instance. It does not authenticate message provenance; no signing
// is layered on top.
type Transport struct {
	host    host.Host
	pubsub  *pubsub.PubSub
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	inbound chan *message.Message
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// wireMessage is this package's own wire encoding: network does not
// reach into message's unexported export format, it defines its own.
type wireMessage struct {
	Process string   `json:"process"`
	Counter uint64   `json:"counter"`
	Round   uint64   `json:"round"`
	Coffer  []wireID `json:"coffer"`
}

type wireID struct {
	Process string `json:"process"`
	Counter uint64 `json:"counter"`
}

// NewTransport starts a libp2p host, joins the configured GossipSub
// topic, and begins draining inbound messages into a buffered
// channel. Dials Peer, if set, after the subscription is live.
func NewTransport(ctx context.Context, cfg Config, logger *zap.Logger) (*Transport, error) {
	if cfg.Port < 0 {
		return nil, fmt.Errorf("%w: port must be non-negative", ErrInvalidConfig)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: topic must be set", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h, err := libp2p.New(libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("creating host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("starting gossipsub: %w", err)
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("joining topic %s: %w", cfg.Topic, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("subscribing to topic %s: %w", cfg.Topic, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t := &Transport{
		host:    h,
		pubsub:  ps,
		topic:   topic,
		sub:     sub,
		inbound: make(chan *message.Message, 256),
		logger:  logger,
		cancel:  cancel,
	}
	go t.readLoop(runCtx)

	if cfg.Peer != "" {
		addr, err := multiaddr.NewMultiaddr(cfg.Peer)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("invalid peer address: %w", err)
		}
		if err := t.Connect(ctx, addr); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("connecting to peer: %w", err)
		}
	}

	return t, nil
}

// readLoop drains the GossipSub subscription, decoding and forwarding
// every message not authored by this host onto Inbound.
func (t *Transport) readLoop(ctx context.Context) {
	for {
		raw, err := t.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("pubsub read failed", zap.Error(err))
			continue
		}
		if raw.ReceivedFrom == t.host.ID() {
			continue
		}

		msg, err := decodeMessage(raw.Data)
		if err != nil {
			t.logger.Warn("dropping malformed wire message", zap.Error(err))
			continue
		}

		select {
		case t.inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Broadcast publishes msg to the topic.
func (t *Transport) Broadcast(ctx context.Context, msg *message.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := t.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("publishing message: %w", err)
	}
	return nil
}

// Inbound returns the channel of messages received from peers.
func (t *Transport) Inbound() <-chan *message.Message {
	return t.inbound
}

// Host returns the underlying libp2p host.
func (t *Transport) Host() host.Host {
	return t.host
}

// Connect dials a peer by multiaddr.
func (t *Transport) Connect(ctx context.Context, addr multiaddr.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("invalid peer address: %w", err)
	}
	if err := t.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

// Peers returns the list of currently connected peers.
func (t *Transport) Peers() []peer.ID {
	return t.host.Network().Peers()
}

// Close tears down the subscription, topic, and host.
func (t *Transport) Close() error {
	t.cancel()
	t.sub.Cancel()
	if err := t.topic.Close(); err != nil {
		t.logger.Warn("closing topic", zap.Error(err))
	}
	return t.host.Close()
}

func encodeMessage(m *message.Message) ([]byte, error) {
	coffer := m.Coffer.ToSlice()
	wire := wireMessage{
		Process: string(m.ID.Process),
		Counter: m.ID.Counter,
		Round:   m.Round,
		Coffer:  make([]wireID, 0, len(coffer)),
	}
	for _, id := range coffer {
		wire.Coffer = append(wire.Coffer, wireID{Process: string(id.Process), Counter: id.Counter})
	}
	return json.Marshal(wire)
}

func decodeMessage(data []byte) (*message.Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshaling wire message: %w", err)
	}

	coffer := mapset.NewThreadUnsafeSet[message.MessageId]()
	for _, c := range wire.Coffer {
		coffer.Add(message.MessageId{Process: message.Process(c.Process), Counter: c.Counter})
	}

	id := message.MessageId{Process: message.Process(wire.Process), Counter: wire.Counter}
	return message.NewMessage(id, wire.Round, coffer), nil
}
