package distsender_test

import (
	"testing"

	"github.com/nicmcd/ratesim/internal/distsender"
	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

func mustLog(t *testing.T) *tracelog.Sink {
	t.Helper()
	log, err := tracelog.New("", 0)
	if err != nil {
		t.Fatalf("tracelog.New: %v", err)
	}
	return log
}

func defaultParams() distsender.Params {
	return distsender.Params{
		MaxTokens:              100,
		StealThreshold:         0.5,
		TokenAskFactor:         0.5,
		RateAskFactor:          0.5,
		MaxRequestsOutstanding: 1,
		GiveTokenThreshold:     0.5,
		GiveRateThreshold:      0.5,
		MaxRateGiveFactor:      0.5,
	}
}

func TestDistSenderHomeShare(t *testing.T) {
	eng := engine.New(1)
	net := network.New(1)
	log := mustLog(t)
	recv := node.NewReceiver(0, "recv", net, eng, log)

	d := distsender.NewDistSender(1, "sender0", net, eng, log,
		recv.ID(), recv.ID(), 1, 4,
		10, 10, 1.0, 4, false, false, defaultParams())
	for id := msg.NodeId(2); id <= 4; id++ {
		distsender.NewDistSender(id, "peer", net, eng, log,
			recv.ID(), recv.ID(), 1, 4,
			10, 10, 1.0, 4, false, false, defaultParams())
	}

	if got, want := d.Rate(), 0.25; got != want {
		t.Fatalf("expected home share %v, got %v", want, got)
	}

	d.SetInjectionRate(1.0)
	d.SetInjectionRate(0.0)
	eng.Run()

	if recv.Received == 0 {
		t.Fatalf("expected at least one message to reach the receiver")
	}
}

func TestDistSenderRejectsBadMaxRequestsOutstanding(t *testing.T) {
	eng := engine.New(1)
	net := network.New(1)
	log := mustLog(t)
	recv := node.NewReceiver(0, "recv", net, eng, log)

	bad := defaultParams()
	bad.MaxRequestsOutstanding = 4 // must be <= numDistSenders-1 == 3

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an invalid max_requests_outstanding")
		}
	}()
	distsender.NewDistSender(1, "sender0", net, eng, log,
		recv.ID(), recv.ID(), 1, 4,
		10, 10, 1.0, 4, false, false, bad)
}

func TestDistSenderRejectsInconsistentStealRateThreshold(t *testing.T) {
	eng := engine.New(1)
	net := network.New(1)
	log := mustLog(t)
	recv := node.NewReceiver(0, "recv", net, eng, log)

	p := defaultParams()
	p.MaxTokens = 20
	p.StealThreshold = 0.1 // 0.1*20 = 2, below max_message_size 10

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic: steal_threshold*max_tokens below max_message_size with steal_rate enabled")
		}
	}()
	distsender.NewDistSender(1, "sender0", net, eng, log,
		recv.ID(), recv.ID(), 1, 4,
		1, 10, 1.0, 4, false, true, p)
}

func TestDistSenderRejectsRequestFromItself(t *testing.T) {
	eng := engine.New(1)
	net := network.New(1)
	log := mustLog(t)
	recv := node.NewReceiver(0, "recv", net, eng, log)

	d := distsender.NewDistSender(1, "sender0", net, eng, log,
		recv.ID(), recv.ID(), 1, 4,
		10, 10, 1.0, 4, false, false, defaultParams())
	for id := msg.NodeId(2); id <= 4; id++ {
		distsender.NewDistSender(id, "peer", net, eng, log,
			recv.ID(), recv.ID(), 1, 4,
			10, 10, 1.0, 4, false, false, defaultParams())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when a DistRequest claims to come from the receiver itself")
		}
	}()

	m := msg.New(d.ID(), d.ID(), 1, 0)
	m.Type = msg.DistRequest
	m.Data = msg.DistReq{ReqId: 1, Tokens: 1, Rate: 0}
	d.Recv(m)
}
