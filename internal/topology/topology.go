// Package topology builds the actor population — receivers, relays,
// senders — and the id ranges between them, from a loaded Config.
package topology

import (
	"fmt"

	"github.com/nicmcd/ratesim/internal/config"
	"github.com/nicmcd/ratesim/internal/distsender"
	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/node"
	"github.com/nicmcd/ratesim/internal/relay"
	"github.com/nicmcd/ratesim/internal/sender"
	"github.com/nicmcd/ratesim/internal/sendercontrol"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// Topology holds the constructed actor population and the machinery
// needed to run and inspect a simulation.
type Topology struct {
	Net        *network.Network
	Receivers  []*node.Receiver
	Relays     []*relay.Relay
	Senders    []sendercontrol.RateSetter
	Controller *sendercontrol.Controller

	RecvMin, RecvMax msg.NodeId
}

// Build constructs every actor named by cfg, registers them with a fresh
// Network, and schedules the SenderControl rate-change schedule. It
// returns before any other event is scheduled, matching the Class-1
// "validate fully before scheduling anything" error contract.
func Build(cfg *config.Config, eng *engine.Engine, log *tracelog.Sink) (*Topology, error) {
	net := network.New(float64(cfg.NetworkDelay))

	recvMin := msg.NodeId(0)
	recvMax := recvMin + msg.NodeId(cfg.Receivers) - 1
	relayMin := recvMax + 1
	relayMax := relayMin + msg.NodeId(cfg.Relays) - 1
	var senderMin msg.NodeId
	if cfg.Relays > 0 {
		senderMin = relayMax + 1
	} else {
		senderMin = recvMax + 1
	}
	senderMax := senderMin + msg.NodeId(cfg.Senders) - 1

	t := &Topology{Net: net, RecvMin: recvMin, RecvMax: recvMax}

	for id := recvMin; id <= recvMax; id++ {
		t.Receivers = append(t.Receivers, node.NewReceiver(id, fmt.Sprintf("recv%d", id), net, eng, log))
	}

	relayRate := 0.0
	if cfg.Relays > 0 {
		relayRate = cfg.RateLimit / float64(cfg.Relays)
	}
	for id := relayMin; id <= relayMax; id++ {
		t.Relays = append(t.Relays, relay.NewRelay(id, fmt.Sprintf("relay%d", id), net, eng, log, relayRate))
	}

	schedule, err := sendercontrol.ParseSchedule(toRawEntries(cfg.SenderControl), int(cfg.Senders))
	if err != nil {
		return nil, err
	}

	switch cfg.Algorithm {
	case config.Basic:
		for id := senderMin; id <= senderMax; id++ {
			s := sender.NewBasic(id, fmt.Sprintf("sender%d", id), net, eng, log, recvMin, recvMax, cfg.MinMessageSize, cfg.MaxMessageSize)
			t.Senders = append(t.Senders, s)
		}
	case config.Relay:
		for id := senderMin; id <= senderMax; id++ {
			s := relay.NewRelaySender(id, fmt.Sprintf("sender%d", id), net, eng, log, recvMin, recvMax, relayMin, relayMax, cfg.MinMessageSize, cfg.MaxMessageSize, cfg.SenderConfig.MaxOutstanding)
			t.Senders = append(t.Senders, s)
		}
	case config.Dist:
		p := cfg.SenderConfig.Params
		params := distsender.Params{
			MaxTokens:              float64(p.MaxTokens),
			StealThreshold:         p.StealThreshold,
			TokenAskFactor:         p.TokenAskFactor,
			RateAskFactor:          p.RateAskFactor,
			MaxRequestsOutstanding: int(p.MaxRequestsOutstanding),
			GiveTokenThreshold:     p.GiveTokenThreshold,
			GiveRateThreshold:      p.GiveRateThreshold,
			MaxRateGiveFactor:      p.MaxRateGiveFactor,
		}
		for id := senderMin; id <= senderMax; id++ {
			s := distsender.NewDistSender(id, fmt.Sprintf("sender%d", id), net, eng, log,
				recvMin, recvMax, senderMin, senderMax,
				cfg.MinMessageSize, cfg.MaxMessageSize,
				cfg.RateLimit, int(cfg.Senders),
				cfg.SenderConfig.StealTokens, cfg.SenderConfig.StealRate, params)
			t.Senders = append(t.Senders, s)
		}
	default:
		return nil, fmt.Errorf("topology: unknown algorithm %q", cfg.Algorithm)
	}

	t.Controller = sendercontrol.New(eng, t.Senders, schedule)
	return t, nil
}

func toRawEntries(entries []config.RawControlEntry) []sendercontrol.RawEntry {
	out := make([]sendercontrol.RawEntry, len(entries))
	for i, e := range entries {
		out[i] = sendercontrol.RawEntry{Tick: e.Tick, Control: e.Control}
	}
	return out
}
