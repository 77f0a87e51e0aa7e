package relay

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/sender"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// RelaySender paces its traffic through a pool of Relays using a simple
// credit window: at most maxOutstanding RelayRequests may be in flight at
// once.
type RelaySender struct {
	*sender.Base

	relayMin, relayMax msg.NodeId

	maxOutstanding uint32
	credits        uint32
	sendQueue      []*msg.Message

	reqId uint64
}

// NewRelaySender builds a RelaySender and registers it with net.
func NewRelaySender(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink, recvMin, recvMax, relayMin, relayMax msg.NodeId, minSize, maxSize, maxOutstanding uint32) *RelaySender {
	if maxOutstanding == 0 {
		panic(fmt.Errorf("relay sender %s: max_outstanding must be > 0", name))
	}
	rs := &RelaySender{
		Base:           sender.NewBase(id, name, net, eng, log, recvMin, recvMax, minSize, maxSize),
		relayMin:       relayMin,
		relayMax:       relayMax,
		maxOutstanding: maxOutstanding,
		credits:        maxOutstanding,
	}
	rs.Base.Init(rs, rs)
	net.Register(id, rs)
	return rs
}

// SendMessage rewrites m into a RelayRequest addressed to a randomly chosen
// relay, saving the true destination for the Relay to restore, then
// enqueues it and attempts to drain.
func (rs *RelaySender) SendMessage(m *msg.Message) {
	relay := msg.NodeId(rs.Rng().RandInt(int(rs.relayMin), int(rs.relayMax)))
	rs.reqId++

	req := msg.RelayReq{ReqId: rs.reqId, MsgDst: m.Dst}
	m.Dst = relay
	m.Size++
	m.Type = msg.RelayRequest
	m.Data = req

	rs.sendQueue = append(rs.sendQueue, m)
	rs.drain()
}

func (rs *RelaySender) drain() {
	for len(rs.sendQueue) > 0 && rs.credits > 0 {
		m := rs.sendQueue[0]
		rs.sendQueue = rs.sendQueue[1:]
		rs.Send(m)
		rs.credits--
	}
}

// Recv handles a RelayResponse: releases the credit the matching request
// held and attempts to drain the queue further.
func (rs *RelaySender) Recv(m *msg.Message) {
	if m.Type != msg.RelayResponse {
		panic(fmt.Errorf("relay sender %s: unexpected message %s", rs.Name(), m))
	}
	if rs.credits >= rs.maxOutstanding {
		panic(fmt.Errorf("relay sender %s: credits %d exceed max_outstanding %d", rs.Name(), rs.credits+1, rs.maxOutstanding))
	}
	rs.credits++
	rs.drain()
}
