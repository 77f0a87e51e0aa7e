package node

import (
	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// Receiver is a terminal sink: it records each message's arrival time and
// then drops it. It never originates traffic and has no egress queue of
// its own beyond the one Base provides (which it never uses).
type Receiver struct {
	*Base

	Received  int
	BytesRecv uint64
}

// NewReceiver builds a Receiver and registers it with net.
func NewReceiver(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink) *Receiver {
	r := &Receiver{Base: NewBase(id, name, net, eng, FIFO, log)}
	r.Init(r)
	net.Register(id, r)
	return r
}

// Recv records the message's arrival and discards it.
func (r *Receiver) Recv(m *msg.Message) {
	m.Recvd = r.Now()
	r.Received++
	r.BytesRecv += uint64(m.Size)
	r.Debugf("received %s after %.6f ticks in flight", m, m.Recvd.Seconds()-m.Sent.Seconds())
}
