// Package engine adapts github.com/iti/evt/evtm's EventManager to the
// rate-control simulation's (tick, epsilon) time model. It is the one place
// in this repository that owns the kernel: the priority queue of events,
// the worker-thread count, and run-to-completion are all treated as the
// event manager's contract, not reimplemented here.
package engine

import (
	"github.com/iti/evt/evtm"

	"github.com/nicmcd/ratesim/internal/simtime"
)

// runLimitSeconds is passed as evtm's LimitTime so that Run drains the
// event queue until empty rather than stopping at a fixed horizon. It is
// kept well under the range that vrtime's seconds-to-ticks conversion
// (ticks = seconds * TicksPerSecond, default 1e6) can represent in an
// int64 without overflow.
const runLimitSeconds = 1e12

// Engine runs a rate-control simulation to completion on evtm's event
// manager. Threads records the configured worker count; the event manager
// is responsible for the concurrent-dispatch, serial-per-actor contract
// spec'd for the kernel, so Engine itself does no locking.
type Engine struct {
	mgr     *evtm.EventManager
	Threads int
}

// New builds an Engine with the given worker-thread hint. threads must be
// >= 1; this is checked by internal/config before an Engine is created.
func New(threads int) *Engine {
	return &Engine{
		mgr:     evtm.New(),
		Threads: threads,
	}
}

// Now returns the simulation's current virtual time.
func (e *Engine) Now() simtime.Time {
	return simtime.FromSeconds(e.mgr.CurrentSeconds())
}

// Schedule enqueues handler to run at "at", carrying ctx (the receiving
// actor, by the evtm convention of naming the scheduled-on object as
// context) and data (the event payload).
func (e *Engine) Schedule(ctx any, data any, handler evtm.EventHandlerFunction, at simtime.Time) {
	e.mgr.Schedule(ctx, data, handler, at.VT())
}

// Run drains the event queue until no events remain. A correctly configured
// SenderControl schedule (ending with rate 0) guarantees this terminates in
// finite virtual time: see spec §8, "Schedule termination".
func (e *Engine) Run() {
	e.mgr.Run(runLimitSeconds)
}
