// Package network is the registry of actors by NodeId and the holder of
// the fixed per-hop propagation delay, mirroring mrnes's Network/getNode
// pattern but flattened to the single fixed-delay topology this
// simulation's spec calls for.
package network

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/simtime"
)

// Node is the capability every actor in the fabric exposes: something that
// can receive a Message and report its own id. Sender, Receiver, Relay and
// DistSender all satisfy it.
type Node interface {
	ID() msg.NodeId
	Recv(m *msg.Message)
	// FutureRecv schedules a delivery of m to this node at the given
	// virtual time, independent of that node's own egress queue.
	FutureRecv(m *msg.Message, at simtime.Time)
}

// Network is a read-only-during-simulation map from NodeId to Node,
// populated once at construction, plus the scalar per-hop propagation
// delay every message pays in addition to its own serialization time.
type Network struct {
	delay float64 // ticks (virtual seconds)
	nodes map[msg.NodeId]Node
}

// New builds an empty Network with the given per-hop delay.
func New(delay float64) *Network {
	return &Network{delay: delay, nodes: make(map[msg.NodeId]Node)}
}

// Register adds a node to the registry. Called once per node at
// construction; registering the same id twice is a configuration error.
func (n *Network) Register(id msg.NodeId, node Node) {
	if _, present := n.nodes[id]; present {
		panic(fmt.Errorf("network: id %d registered twice", id))
	}
	n.nodes[id] = node
}

// GetNode looks up a node by id. A missing id is a fatal configuration
// error: every destination a send() names must already be registered
// before the first event fires.
func (n *Network) GetNode(id msg.NodeId) Node {
	node, present := n.nodes[id]
	if !present {
		panic(fmt.Errorf("network: unregistered destination id %d", id))
	}
	return node
}

// Delay returns the fixed per-hop propagation delay.
func (n *Network) Delay() float64 {
	return n.delay
}

// Size returns the number of registered nodes.
func (n *Network) Size() int {
	return len(n.nodes)
}
