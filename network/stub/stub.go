// Package stub is an in-memory network.Adapter used by tests and by
// single-process multi-node simulations: every node's Inbox is a Go
// channel, and a shared Hub routes Unicast and Broadcast calls to the
// right channels synchronously. Modeled on network/stub/hub.go's
// Hub-plugs-Networks pattern, collapsed to carnot's narrower
// Unicast/Broadcast surface.
package stub

import (
	"sync"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/network"
)

// Hub plugs every node's Network together so that a Unicast or
// Broadcast call on one reaches every other plugged Network directly,
// without any real transport.
type Hub struct {
	mu    sync.Mutex
	nodes map[carnot.NodeId]*Network
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{nodes: make(map[carnot.NodeId]*Network)}
}

// Plug registers net under id so other nodes' Unicast/Broadcast calls
// can reach it.
func (h *Hub) Plug(id carnot.NodeId, net *Network) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes[id] = net
}

// Network is a single node's view of the Hub: its own id, the Hub it is
// plugged into, and its inbox.
type Network struct {
	self  carnot.NodeId
	hub   *Hub
	inbox chan network.Envelope
}

// NewNetwork builds a Network for self, plugs it into hub, and returns
// it. The inbox is buffered generously since, unlike a real transport,
// delivery here is synchronous with the sender's call.
func NewNetwork(hub *Hub, self carnot.NodeId) *Network {
	net := &Network{self: self, hub: hub, inbox: make(chan network.Envelope, 1024)}
	hub.Plug(self, net)
	return net
}

func (n *Network) Unicast(to carnot.Committee, msg network.Envelope) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	for id := range to {
		if target, ok := n.hub.nodes[id]; ok {
			target.deliver(msg)
		}
	}
	return nil
}

func (n *Network) Broadcast(msg network.Envelope) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	for _, target := range n.hub.nodes {
		target.deliver(msg)
	}
	return nil
}

func (n *Network) Inbox() <-chan network.Envelope {
	return n.inbox
}

func (n *Network) deliver(msg network.Envelope) {
	select {
	case n.inbox <- msg:
	default:
		// inbox full: drop rather than block the sender, matching the
		// best-effort delivery semantics of a real gossip transport.
	}
}
