package relay_test

import (
	"testing"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/relay"
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

func TestRelaySenderDeliversThroughRelay(t *testing.T) {
	eng := engine.New(1)
	net := network.New(1)
	log := mustLog(t)

	recv := node.NewReceiver(0, "recv", net, eng, log)
	rl := relay.NewRelay(1, "relay", net, eng, log, 0.5)
	s := relay.NewRelaySender(2, "sender", net, eng, log, recv.ID(), recv.ID(), rl.ID(), rl.ID(), 10, 10, 2)

	s.SetInjectionRate(1.0)
	s.SetInjectionRate(0.0)
	eng.Run()

	if recv.Received == 0 {
		t.Fatalf("expected at least one message to eventually reach the receiver")
	}
}

func TestNewRelayAcceptsInRangeRate(t *testing.T) {
	eng := engine.New(1)
	net := network.New(0)
	log := mustLog(t)
	rl := relay.NewRelay(0, "relay", net, eng, log, 0.25)
	if rl == nil {
		t.Fatalf("expected a constructed relay")
	}
}

func TestRelayRejectsOutOfRangeRate(t *testing.T) {
	eng := engine.New(1)
	net := network.New(0)
	log := mustLog(t)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a relay rate outside (0,1]")
		}
	}()
	relay.NewRelay(0, "relay", net, eng, log, 1.5)
}
