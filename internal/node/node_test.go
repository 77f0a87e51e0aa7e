package node_test

import (
	"testing"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// probe is a minimal actor for exercising node.Base directly: it embeds
// *node.Base and records every message it receives, in arrival order.
type probe struct {
	*node.Base
	arrivals     []*msg.Message
	arrivalTicks []float64
}

func newProbe(t *testing.T, id msg.NodeId, net *network.Network, eng *engine.Engine, log *tracelog.Sink) *probe {
	t.Helper()
	p := &probe{Base: node.NewBase(id, "probe", net, eng, node.FIFO, log)}
	p.Init(p)
	net.Register(id, p)
	return p
}

func (p *probe) Recv(m *msg.Message) {
	p.arrivals = append(p.arrivals, m)
	p.arrivalTicks = append(p.arrivalTicks, p.Now().Seconds())
}

func mustLog(t *testing.T) *tracelog.Sink {
	t.Helper()
	log, err := tracelog.New("", 0)
	if err != nil {
		t.Fatalf("tracelog.New: %v", err)
	}
	return log
}

func TestEgressIsFIFO(t *testing.T) {
	eng := engine.New(1)
	net := network.New(5)
	log := mustLog(t)

	src := newProbe(t, 0, net, eng, log)
	dst := newProbe(t, 1, net, eng, log)

	for seq := uint32(0); seq < 3; seq++ {
		m := msg.New(src.ID(), dst.ID(), 10, msg.Transaction(src.ID(), seq))
		src.Send(m)
	}
	eng.Run()

	if len(dst.arrivals) != 3 {
		t.Fatalf("expected 3 arrivals, got %d", len(dst.arrivals))
	}
	for seq, m := range dst.arrivals {
		if m.Trans != msg.Transaction(src.ID(), uint32(seq)) {
			t.Fatalf("arrival %d out of order: %s", seq, m)
		}
	}
}

func TestEgressSerializesBySize(t *testing.T) {
	eng := engine.New(1)
	net := network.New(0)
	log := mustLog(t)

	src := newProbe(t, 0, net, eng, log)
	dst := newProbe(t, 1, net, eng, log)

	first := msg.New(src.ID(), dst.ID(), 50, msg.Transaction(src.ID(), 0))
	second := msg.New(src.ID(), dst.ID(), 50, msg.Transaction(src.ID(), 1))
	src.Send(first)
	src.Send(second)
	eng.Run()

	if len(dst.arrivals) != 2 {
		t.Fatalf("expected 2 arrivals, got %d", len(dst.arrivals))
	}
	gap := dst.arrivalTicks[1] - dst.arrivalTicks[0]
	if gap < float64(first.Size) {
		t.Fatalf("expected consecutive receives to be separated by at least %d ticks, got %v", first.Size, gap)
	}
}

func TestUnregisteredDestinationPanics(t *testing.T) {
	eng := engine.New(1)
	net := network.New(0)
	log := mustLog(t)
	src := newProbe(t, 0, net, eng, log)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when draining to an unregistered destination")
		}
	}()
	src.Send(msg.New(src.ID(), 99, 10, 0))
	eng.Run()
}

func TestNonFIFOQueuingPanics(t *testing.T) {
	eng := engine.New(1)
	net := network.New(0)
	log := mustLog(t)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an unsupported queuing discipline")
		}
	}()
	node.NewBase(0, "bad", net, eng, node.Priority, log)
}
