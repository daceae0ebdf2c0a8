package network

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/host"
	lnetwork "github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/peerstore"
	"github.com/libp2p/go-libp2p-core/protocol"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	tcp "github.com/libp2p/go-tcp-transport"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/carnot-network/carnot/carnot"
)

// CarnotProtocolID is the libp2p stream protocol every node speaks for
// unicast Send outputs, mirroring FlowLibP2PProtocolID's role in
// network/gossip/libp2p/libp2pNode.go.
const CarnotProtocolID protocol.ID = "/carnot/send/1.0.0"

// carnotTopic is the single gossipsub topic every node subscribes to
// for BroadcastTimeoutQc and BroadcastProposal outputs. A production
// deployment with many overlapping committees could shard this per
// root-committee epoch; one topic is sufficient for a single running
// instance of the overlay.
const carnotTopic = "/carnot/broadcast/1.0.0"

// PeerDirectory resolves a carnot.NodeId to the libp2p peer.ID and
// dialable address it corresponds to. The core never assigns transport
// addresses itself (see carnot.Overlay), so this directory is supplied
// out of band, typically from the same static configuration that seeds
// the overlay's committee layout.
type PeerDirectory interface {
	PeerInfo(id carnot.NodeId) (peer.AddrInfo, error)
}

// Node is a libp2p-backed network.Adapter: gossipsub for Broadcast,
// direct streams for Unicast. Layout follows
// network/gossip/libp2p/libp2pNode.go's P2PNode, narrowed to exactly
// the two send paths Carnot uses.
type Node struct {
	mu   sync.Mutex
	self carnot.NodeId
	dir  PeerDirectory
	log  zerolog.Logger

	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	inbox chan Envelope
}

// Start constructs and starts a libp2p host listening on addr,
// subscribes to the broadcast topic, and registers the unicast stream
// handler.
func Start(ctx context.Context, self carnot.NodeId, addr multiaddr.Multiaddr, dir PeerDirectory, log zerolog.Logger) (*Node, error) {
	h, err := libp2p.New(ctx,
		libp2p.ListenAddrs(addr),
		libp2p.Transport(tcp.NewTCPTransport),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct libp2p host")
	}

	n := &Node{
		self:  self,
		dir:   dir,
		log:   log,
		host:  h,
		inbox: make(chan Envelope, 4096),
	}
	h.SetStreamHandler(CarnotProtocolID, n.handleStream)

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, errors.Wrap(err, "could not start gossipsub")
	}
	n.ps = ps

	topic, err := ps.Join(carnotTopic)
	if err != nil {
		return nil, errors.Wrap(err, "could not join broadcast topic")
	}
	n.topic = topic

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, errors.Wrap(err, "could not subscribe to broadcast topic")
	}
	n.sub = sub

	go n.readLoop(ctx)

	return n, nil
}

// Stop closes the underlying libp2p host and its subscriptions.
func (n *Node) Stop() error {
	n.sub.Cancel()
	if err := n.topic.Close(); err != nil {
		return errors.Wrap(err, "could not close broadcast topic")
	}
	return n.host.Close()
}

func (n *Node) readLoop(ctx context.Context) {
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			return // context cancelled or subscription closed
		}
		var env Envelope
		if err := msgpack.Unmarshal(msg.Data, &env); err != nil {
			n.log.Warn().Err(err).Msg("dropping malformed broadcast envelope")
			continue
		}
		n.deliver(env)
	}
}

func (n *Node) handleStream(s lnetwork.Stream) {
	defer s.Close()
	var env Envelope
	dec := msgpack.NewDecoder(bufio.NewReader(s))
	if err := dec.Decode(&env); err != nil {
		n.log.Warn().Err(err).Msg("dropping malformed unicast envelope")
		return
	}
	n.deliver(env)
}

func (n *Node) deliver(env Envelope) {
	select {
	case n.inbox <- env:
	default:
		n.log.Warn().Msg("inbox full, dropping envelope")
	}
}

func (n *Node) Inbox() <-chan Envelope {
	return n.inbox
}

// Broadcast publishes msg on the shared gossipsub topic.
func (n *Node) Broadcast(msg Envelope) error {
	raw, err := msgpack.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "could not encode envelope")
	}
	return n.topic.Publish(context.Background(), raw)
}

// Unicast opens a new direct stream to every member of to and writes
// msg to each; a send to this node itself goes straight to its inbox.
func (n *Node) Unicast(to carnot.Committee, msg Envelope) error {
	raw, err := msgpack.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "could not encode envelope")
	}

	var errs []error
	for id := range to {
		if id == n.self {
			n.deliver(msg) // a node is always implicitly a member of its own sends
			continue
		}
		if err := n.sendTo(id, raw); err != nil {
			errs = append(errs, fmt.Errorf("unicast to %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("unicast failures: %v", errs)
	}
	return nil
}

func (n *Node) sendTo(id carnot.NodeId, raw []byte) error {
	info, err := n.dir.PeerInfo(id)
	if err != nil {
		return errors.Wrap(err, "could not resolve peer")
	}

	n.mu.Lock()
	n.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
	n.mu.Unlock()

	ctx := context.Background()
	if err := n.host.Connect(ctx, info); err != nil {
		return errors.Wrap(err, "could not connect to peer")
	}
	s, err := n.host.NewStream(ctx, info.ID, CarnotProtocolID)
	if err != nil {
		return errors.Wrap(err, "could not open stream")
	}
	defer s.Close()

	if _, err := s.Write(raw); err != nil {
		return errors.Wrap(err, "could not write envelope")
	}
	return nil
}
