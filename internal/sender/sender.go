// Package sender implements the Sender base: the injection-rate state
// machine and random-traffic generator shared by every sending algorithm.
// Concrete algorithms (BasicSender here; RelaySender and DistSender in
// their own packages) embed *Base and supply their own SendMessage.
package sender

import (
	"fmt"

	"github.com/iti/evt/evtm"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// Algorithm is the capability a concrete sending algorithm supplies: given
// a freshly generated message, it must eventually put it on the wire or
// enqueue it for later — dropping is not permitted.
type Algorithm interface {
	SendMessage(m *msg.Message)
}

// Base owns the injection-rate knob and the random generator that produces
// Plain messages at a pace controlled by that knob. It does not itself
// decide how a message reaches the wire; that's delegated to the embedding
// algorithm via Algorithm.SendMessage.
type Base struct {
	*node.Base

	impl Algorithm

	recvMin, recvMax msg.NodeId
	minSize, maxSize uint32

	injectionRate float64
	messageCount  uint32
}

// NewBase constructs the shared sender state. recvMin/recvMax bound the
// destination range a generated message's dst is drawn from, uniformly.
func NewBase(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink, recvMin, recvMax msg.NodeId, minSize, maxSize uint32) *Base {
	if minSize < 1 || maxSize < minSize {
		panic(fmt.Errorf("sender %s: invalid message size range [%d,%d]", name, minSize, maxSize))
	}
	return &Base{
		Base:    node.NewBase(id, name, net, eng, node.FIFO, log),
		recvMin: recvMin,
		recvMax: recvMax,
		minSize: minSize,
		maxSize: maxSize,
	}
}

// Init records the embedding algorithm so rate-change and self-send events
// dispatch back into it. Must be called once, immediately after
// construction, alongside node.Base.Init.
func (s *Base) Init(self network.Node, impl Algorithm) {
	s.Base.Init(self)
	s.impl = impl
}

// InjectionRate returns the sender's current injection rate, in [0,1].
func (s *Base) InjectionRate() float64 {
	return s.injectionRate
}

// SetInjectionRate schedules a RateChange to r, at now.PlusEps() so the
// transition is ordered strictly after the current event at the same tick;
// events already scheduled at a later epsilon of that tick run after it —
// see spec §4.4 and the epsilon-correctness property.
func (s *Base) SetInjectionRate(r float64) {
	if r < 0 || r > 1 {
		panic(fmt.Errorf("sender %s: injection rate %v out of [0,1]", s.Name(), r))
	}
	s.Schedule(r, handleRateChangeEvent, s.Now().PlusEps())
}

func handleRateChangeEvent(_ *evtm.EventManager, context any, data any) any {
	s := context.(interface{ handleRateChange(float64) })
	s.handleRateChange(data.(float64))
	return nil
}

func (s *Base) handleRateChange(r float64) {
	wasBootstrap := s.injectionRate == 0 && r > 0
	s.injectionRate = r
	s.Debugf("injection rate -> %v", r)
	if wasBootstrap {
		s.Schedule(nil, handleSendMessageEvent, s.Now().PlusEps())
	}
}

func handleSendMessageEvent(_ *evtm.EventManager, context any, _ any) any {
	s := context.(interface{ handleSendMessage() })
	s.handleSendMessage()
	return nil
}

func (s *Base) handleSendMessage() {
	dst := msg.NodeId(s.Rng().RandInt(int(s.recvMin), int(s.recvMax)))
	size := uint32(s.Rng().RandInt(int(s.minSize), int(s.maxSize)))
	m := msg.New(s.ID(), dst, size, msg.Transaction(s.ID(), s.messageCount))
	s.messageCount++

	s.impl.SendMessage(m)

	if s.injectionRate > 0 {
		delay := s.CyclesToSend(size, s.injectionRate)
		s.Schedule(nil, handleSendMessageEvent, s.Now().Plus(delay))
	}
}
