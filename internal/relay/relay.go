// Package relay implements the bandwidth-limited forwarder (Relay) and the
// credit-window sender that drives traffic through it (RelaySender).
package relay

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/simtime"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// Relay forwards messages on behalf of a RelaySender at a fixed fraction
// of aggregate bandwidth, enforced by serializing every forwarded message
// against its own nextTime clock — a single-token-bucket-of-one scheduler.
type Relay struct {
	*node.Base

	rate     float64
	nextTime simtime.Time

	bytesForwarded uint64
}

// NewRelay builds a Relay with the given share of aggregate bandwidth and
// registers it with net. Per spec §4.6, rate must equal
// globalRateLimit/numRelays; that invariant is enforced by the caller
// (internal/topology), not re-derived here.
func NewRelay(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink, rate float64) *Relay {
	if rate <= 0 || rate > 1 {
		panic(fmt.Errorf("relay %s: rate %v out of (0,1]", name, rate))
	}
	r := &Relay{
		Base: node.NewBase(id, name, net, eng, node.FIFO, log),
		rate: rate,
	}
	r.Init(r)
	net.Register(id, r)
	return r
}

// Recv dispatches an inbound RelayRequest through the forward-and-ack
// protocol described in spec §4.6. Any other message type at a Relay is a
// configuration bug.
func (r *Relay) Recv(m *msg.Message) {
	req, ok := m.Data.(msg.RelayReq)
	if m.Type != msg.RelayRequest || !ok {
		panic(fmt.Errorf("relay %s: unexpected message %s", r.Name(), m))
	}

	now := r.Now()
	if r.nextTime.Less(now.PlusEps()) {
		r.nextTime = now.PlusEps()
	}

	delay := r.Net().Delay()

	ack := msg.New(r.ID(), m.Src, 1, m.Trans)
	ack.Type = msg.RelayResponse
	ack.Data = msg.RelayResp{ReqId: req.ReqId}
	r.dispatch(ack, m.Src, r.nextTime.Plus(delay))

	m.Dst = req.MsgDst
	m.Size--
	m.Type = msg.Plain
	m.Data = nil
	r.dispatch(m, m.Dst, r.nextTime.Plus(delay))

	r.bytesForwarded += uint64(m.Size)
	r.nextTime = r.nextTime.Plus(r.CyclesToSend(m.Size, r.rate))
}

// BytesForwarded reports the total payload bytes this relay has forwarded
// to their final destination, for throughput-cap checks (spec §8, S2).
func (r *Relay) BytesForwarded() uint64 {
	return r.bytesForwarded
}

// dispatch delivers m to dst's Recv at "at", bypassing this relay's own
// egress queue: Relay enforces its share of aggregate bandwidth through
// nextTime directly, not through Base's full-link-bandwidth FIFO model.
func (r *Relay) dispatch(m *msg.Message, dst msg.NodeId, at simtime.Time) {
	m.Sent = r.Now()
	r.Net().GetNode(dst).FutureRecv(m, at)
}
