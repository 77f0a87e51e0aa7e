// Package distsender implements DistSender: a per-sender token bucket with
// peer-to-peer stealing of both tokens (bursts) and long-run rate share,
// the hardest of the three sending algorithms.
package distsender

import (
	"fmt"
	"math"

	"github.com/iti/evt/evtm"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/msg"
	"github.com/nicmcd/ratesim/internal/network"
	"github.com/nicmcd/ratesim/internal/sender"
	"github.com/nicmcd/ratesim/internal/tracelog"
)

// tiny is the slack given to the rate-conservation bound when checking
// rate + rateAsked <= 1, to absorb floating-point drift across many steals.
const tiny = 1e-6

// reqIdTag marks a reqId as a DistRequest id rather than a transaction id
// by setting bit 60, per the tagging convention in spec §3.
const reqIdTag = uint64(0x1000000000000000)

// Params bundles the tunables of §6's sender_config.params block for the
// dist algorithm.
type Params struct {
	MaxTokens              float64
	StealThreshold         float64
	TokenAskFactor         float64
	RateAskFactor          float64
	MaxRequestsOutstanding int
	GiveTokenThreshold     float64
	GiveRateThreshold      float64
	MaxRateGiveFactor      float64
}

// DistSender is a distributed token-bucket sender that may steal tokens
// and/or rate share from its peers when its own bucket runs low.
type DistSender struct {
	*sender.Base

	distMin, distMax msg.NodeId

	stealTokens bool
	stealRate   bool
	params      Params

	rate      float64
	tokens    float64
	lastTick  float64
	sendQueue []*msg.Message
	queueSize uint32

	requestsOutstanding int
	waiting             bool
	rateAsked           float64

	distReqId uint64
	peerQueue []msg.NodeId
}

// NewDistSender builds a DistSender, home-sharing aggregateRateLimit across
// numDistSenders, and registers it with net. distMin/distMax bound the
// range of peer ids eligible for stealing (inclusive, containing this
// sender's own id).
func NewDistSender(id msg.NodeId, name string, net *network.Network, eng *engine.Engine, log *tracelog.Sink,
	recvMin, recvMax, distMin, distMax msg.NodeId, minSize, maxSize uint32,
	aggregateRateLimit float64, numDistSenders int,
	stealTokens, stealRate bool, params Params) *DistSender {

	if params.MaxRequestsOutstanding < 1 || params.MaxRequestsOutstanding > numDistSenders-1 {
		panic(fmt.Errorf("dist sender %s: max_requests_outstanding %d invalid for %d senders", name, params.MaxRequestsOutstanding, numDistSenders))
	}
	if params.MaxTokens < float64(minSize) {
		panic(fmt.Errorf("dist sender %s: max_tokens %v below min_message_size %d", name, params.MaxTokens, minSize))
	}
	if stealRate && params.StealThreshold*params.MaxTokens < float64(maxSize) {
		panic(fmt.Errorf("dist sender %s: steal_threshold*max_tokens must be >= max_message_size when steal_rate is enabled", name))
	}

	d := &DistSender{
		Base:        sender.NewBase(id, name, net, eng, log, recvMin, recvMax, minSize, maxSize),
		distMin:     distMin,
		distMax:     distMax,
		stealTokens: stealTokens,
		stealRate:   stealRate,
		params:      params,
		rate:        aggregateRateLimit / float64(numDistSenders),
		tokens:      params.MaxTokens,
	}
	d.Init(d, d)
	net.Register(id, d)
	return d
}

// Rate returns the sender's current owned rate share.
func (d *DistSender) Rate() float64 {
	return d.rate
}

// Tokens returns the externally observable token count, per spec §4.8's
// "all token math is f64 internally; the externally observable token count
// is floor(tokens)".
func (d *DistSender) Tokens() uint64 {
	return uint64(math.Floor(d.getTokens()))
}

// getTokens accrues tokens owed since lastTick at the current rate,
// clamps to maxTokens, and is the mandatory entry point for every
// state-reading decision in this file.
func (d *DistSender) getTokens() float64 {
	now := d.Now().Seconds()
	d.tokens = math.Min(d.tokens+(now-d.lastTick)*d.rate, d.params.MaxTokens)
	d.lastTick = now
	if d.tokens < 0 {
		panic(fmt.Errorf("dist sender %s: tokens went negative", d.Name()))
	}
	return d.tokens
}

// SendMessage enqueues m and attempts to drain the queue immediately.
func (d *DistSender) SendMessage(m *msg.Message) {
	d.sendQueue = append(d.sendQueue, m)
	d.queueSize += m.Size
	d.processQueue()
}

func (d *DistSender) processQueue() {
	d.processSteal()
	for len(d.sendQueue) > 0 {
		tokens := d.getTokens()
		m := d.sendQueue[0]
		if tokens >= float64(m.Size) {
			d.Send(m)
			d.tokens -= float64(m.Size)
			d.sendQueue = d.sendQueue[1:]
			d.queueSize -= m.Size
			d.processSteal()
			continue
		}
		if !d.waiting {
			wait := (float64(m.Size) - tokens) / math.Max(0.001, d.rate)
			d.waiting = true
			d.Schedule(nil, handleWaitEvent, d.Now().Plus(wait))
		}
		break
	}
}

func handleWaitEvent(_ *evtm.EventManager, context any, _ any) any {
	d := context.(*DistSender)
	d.waiting = false
	d.processQueue()
	return nil
}

// processSteal considers issuing steal requests to peers when this
// sender's bucket is running low and it has both the appetite (stealTokens
// or stealRate enabled, with headroom) and the slots (requestsOutstanding
// below the configured cap) to do so.
func (d *DistSender) processSteal() {
	tokens := d.getTokens()
	lowWater := tokens < d.params.StealThreshold*d.params.MaxTokens
	canStealTokens := d.stealTokens && tokens < d.params.MaxTokens
	canStealRate := d.stealRate && (d.rate+d.rateAsked) < 1-tiny
	slotsAvail := d.requestsOutstanding < d.params.MaxRequestsOutstanding

	if !((canStealTokens || canStealRate) && slotsAvail && lowWater) {
		return
	}

	numReqs := d.params.MaxRequestsOutstanding - d.requestsOutstanding
	peers := d.drawPeers(numReqs)

	for _, peer := range peers {
		reqTokens := uint32(0)
		if d.stealTokens {
			reqTokens = uint32(math.Floor((d.params.MaxTokens - tokens) * d.params.TokenAskFactor))
		}
		reqRate := 0.0
		if d.stealRate {
			reqRate = ((1 - d.rate - d.rateAsked) * d.params.RateAskFactor) / float64(numReqs)
		}
		if reqTokens == 0 && reqRate <= 0 {
			continue
		}

		d.rateAsked += reqRate
		if d.rate+d.rateAsked > 1+tiny {
			panic(fmt.Errorf("dist sender %s: rate + rateAsked exceeds 1 after reservation", d.Name()))
		}

		d.distReqId++
		reqId := reqIdTag | (uint64(d.ID()) << 32) | d.distReqId
		req := msg.DistReq{ReqId: reqId, Tokens: reqTokens, Rate: reqRate}

		m := msg.New(d.ID(), peer, 1, 0)
		m.Type = msg.DistRequest
		m.Data = req
		d.Send(m)
		d.requestsOutstanding++
	}
}

// drawPeers returns n distinct peer ids, excluding self, drawn without
// replacement from [distMin, distMax]. n exceeding the peer pool size is a
// configuration bug (peer exhaustion with outstanding slots), not a
// runtime condition to tolerate.
func (d *DistSender) drawPeers(n int) []msg.NodeId {
	total := int(d.distMax-d.distMin) + 1 - 1 // range size minus self
	if n > total {
		panic(fmt.Errorf("dist sender %s: requested %d peers but only %d available", d.Name(), n, total))
	}
	if len(d.peerQueue) < n {
		d.refillPeerQueue()
	}
	peers := d.peerQueue[:n]
	d.peerQueue = d.peerQueue[n:]
	return peers
}

func (d *DistSender) refillPeerQueue() {
	peers := make([]msg.NodeId, 0, int(d.distMax-d.distMin))
	for id := d.distMin; id <= d.distMax; id++ {
		if id != d.ID() {
			peers = append(peers, id)
		}
	}
	for i := len(peers) - 1; i > 0; i-- {
		j := d.Rng().RandInt(0, i)
		peers[i], peers[j] = peers[j], peers[i]
	}
	d.peerQueue = peers
}

// Recv dispatches an inbound message by its control type: a DistRequest
// asks us to give tokens/rate away, a DistResponse completes one of our own
// outstanding requests.
func (d *DistSender) Recv(m *msg.Message) {
	switch m.Type {
	case msg.DistRequest:
		d.recvRequest(m)
	case msg.DistResponse:
		d.recvResponse(m)
	default:
		panic(fmt.Errorf("dist sender %s: unexpected message %s", d.Name(), m))
	}
}

// recvRequest handles an inbound steal request. If this node is itself
// waiting on tokens or has outstanding requests of its own, it is starving
// and must not give — its giveable tokens are treated as 0.
func (d *DistSender) recvRequest(m *msg.Message) {
	if m.Src == d.ID() {
		panic(fmt.Errorf("dist sender %s: received a DistRequest from itself", d.Name()))
	}
	req, ok := m.Data.(msg.DistReq)
	if !ok {
		panic(fmt.Errorf("dist sender %s: malformed DistRequest", d.Name()))
	}

	tokens := d.getTokens()
	if d.waiting || d.requestsOutstanding > 0 {
		tokens = 0
	}

	give := math.Max(0, tokens-d.params.GiveTokenThreshold*d.params.MaxTokens)
	resTokens := math.Min(give, float64(req.Tokens))
	d.tokens -= resTokens

	givenRate := 0.0
	if req.Rate > 0 && tokens >= d.params.GiveRateThreshold*d.params.MaxTokens {
		givenRate = math.Min(d.params.MaxRateGiveFactor*d.rate, req.Rate)
		d.rate -= givenRate
	}

	res := msg.DistResp{
		ReqId:     req.ReqId,
		Tokens:    uint32(resTokens),
		RateReq:   req.Rate,
		GivenRate: givenRate,
	}

	reply := msg.New(d.ID(), m.Src, 1, m.Trans)
	reply.Type = msg.DistResponse
	reply.Data = res
	d.Send(reply)
}

// recvResponse completes an outstanding steal request: tokens and rate
// handed over are credited, the matching rateAsked reservation released,
// and the queue given a chance to drain further.
func (d *DistSender) recvResponse(m *msg.Message) {
	res, ok := m.Data.(msg.DistResp)
	if !ok {
		panic(fmt.Errorf("dist sender %s: malformed DistResponse", d.Name()))
	}

	d.getTokens()
	d.tokens = math.Min(d.tokens+float64(res.Tokens), d.params.MaxTokens)
	d.rate += res.GivenRate
	d.rateAsked -= res.RateReq

	if d.requestsOutstanding == 0 {
		panic(fmt.Errorf("dist sender %s: received a DistResponse with no outstanding request", d.Name()))
	}
	d.requestsOutstanding--

	d.processQueue()
}
