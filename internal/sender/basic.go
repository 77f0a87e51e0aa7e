package sender

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// Basic forwards every generated message straight to the egress queue, no
// flow control. Aggregate load is bounded only by the injection rate.
type Basic struct {
	*Base
}

// NewBasic builds a Basic sender and registers it with net.
func NewBasic(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink, recvMin, recvMax msg.NodeId, minSize, maxSize uint32) *Basic {
	b := &Basic{Base: NewBase(id, name, net, eng, log, recvMin, recvMax, minSize, maxSize)}
	b.Base.Init(b, b)
	net.Register(id, b)
	return b
}

// SendMessage hands m directly to the node's egress queue.
func (b *Basic) SendMessage(m *msg.Message) {
	b.Send(m)
}

// Recv is unreachable for a pure sender of Plain traffic — BasicSender never
// receives a reply, since its messages carry no control payload.
func (b *Basic) Recv(m *msg.Message) {
	panic(fmt.Errorf("basic sender %s: unexpected recv of %s", b.Name(), m))
}
