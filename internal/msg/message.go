// Package msg defines the Message value record that flows end-to-end
// through the simulated network, and the NodeId address space.
package msg

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/simtime"
)

// NodeId is a dense, opaque actor identifier assigned by the orchestrator
// starting at 0: receivers occupy [RecvMin, RecvMax], relays the next
// range, senders the remainder.
type NodeId uint32

// Kind distinguishes the payload carried by a Message.
type Kind int

const (
	Plain Kind = iota
	RelayRequest
	RelayResponse
	DistRequest
	DistResponse
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "Plain"
	case RelayRequest:
		return "RelayRequest"
	case RelayResponse:
		return "RelayResponse"
	case DistRequest:
		return "DistRequest"
	case DistResponse:
		return "DistResponse"
	default:
		return "Unknown"
	}
}

// RelayReq is the control payload a RelaySender attaches to a RelayRequest
// message: the real destination, stashed so the Relay can restore it.
type RelayReq struct {
	ReqId   uint64
	MsgDst  NodeId
}

// RelayResp is the control payload a Relay attaches to its RelayResponse.
type RelayResp struct {
	ReqId uint64
}

// DistReq is the control payload a DistSender attaches to a steal request.
type DistReq struct {
	ReqId  uint64
	Tokens uint32
	Rate   float64
}

// DistResp is the control payload a DistSender attaches to a steal
// response.
type DistResp struct {
	ReqId     uint64
	Tokens    uint32
	RateReq   float64
	GivenRate float64
}

// Transaction packs a sender id and a per-sender sequence number into the
// 64-bit transaction id convention: (senderID << 32) | seq.
func Transaction(sender NodeId, seq uint32) uint64 {
	return (uint64(sender) << 32) | uint64(seq)
}

// Message is the value record carried across hops. It is owned by exactly
// one actor at a time: created by its originator, transferred on each
// Node.Send, and freed (in Go, simply dropped) by the terminal receiver.
type Message struct {
	Src   NodeId
	Dst   NodeId
	Size  uint32 // simulated bytes, >= 1
	Trans uint64
	Type  Kind
	Data  any // one of RelayReq, RelayResp, DistReq, DistResp, or nil

	Sent  simtime.Time
	Recvd simtime.Time
}

// New constructs a Plain message ready to be handed to a Node's egress.
func New(src, dst NodeId, size uint32, trans uint64) *Message {
	return &Message{Src: src, Dst: dst, Size: size, Trans: trans, Type: Plain}
}

func (m *Message) String() string {
	return fmt.Sprintf("src=%d dst=%d size=%d trans=%d type=%s", m.Src, m.Dst, m.Size, m.Trans, m.Type)
}
