// Package simtime implements the rate-control simulation's notion of virtual
// time: a (tick, epsilon) pair with sub-tick tie-breaking, layered on top of
// the iti/evt/vrtime clock the evtm event manager already schedules against.
package simtime

import (
	"math"

	"github.com/iti/evt/vrtime"
)

// epsUnit is the real-seconds weight given to one unit of epsilon when a
// Time is handed to the underlying event manager. It must be small enough
// that no realistic tick delta (message sizes, network delays) can be
// mistaken for an epsilon bump, yet representable in float64 once summed
// with tick values seen in practice.
const epsUnit = 1e-9

// Time is a tick plus a sub-tick ordering counter. Tick is measured in
// seconds of virtual time (one simulated byte of transmission costs one
// tick, i.e. one second, on a unit-bandwidth link). Two Times at the same
// tick are ordered by epsilon.
type Time struct {
	tick float64
	eps  uint64
	inf  bool
}

// Zero is virtual time 0, epsilon 0.
func Zero() Time {
	return Time{}
}

// Never is the TICK_INV sentinel: a time that is never reached.
func Never() Time {
	return Time{inf: true}
}

// FromSeconds builds a Time at the given tick (seconds) with epsilon 0.
func FromSeconds(seconds float64) Time {
	if math.IsInf(seconds, 1) {
		return Never()
	}
	return Time{tick: seconds}
}

// Valid reports whether this is not the Never sentinel.
func (t Time) Valid() bool {
	return !t.inf
}

// Ticks returns the tick (virtual seconds) component.
func (t Time) Ticks() float64 {
	return t.tick
}

// Eps returns the sub-tick ordering counter.
func (t Time) Eps() uint64 {
	return t.eps
}

// PlusEps returns the next epsilon at the same tick: strictly greater than
// t, but at the same nominal tick. Used to order "happens right after this
// step, before anything new at the next tick" events, e.g. rate-change
// propagation, drain bootstrap, and relay response-before-forward.
func (t Time) PlusEps() Time {
	if t.inf {
		return t
	}
	return Time{tick: t.tick, eps: t.eps + 1}
}

// Plus returns a Time offset by the given number of ticks (seconds),
// resetting the epsilon counter — the new tick is a fresh arrival.
func (t Time) Plus(ticks float64) Time {
	if t.inf {
		return t
	}
	return Time{tick: t.tick + ticks}
}

// Less reports whether t sorts strictly before o under (tick, epsilon)
// lexicographic order.
func (t Time) Less(o Time) bool {
	if t.inf != o.inf {
		return o.inf
	}
	if t.inf {
		return false
	}
	if t.tick != o.tick {
		return t.tick < o.tick
	}
	return t.eps < o.eps
}

// Equal reports exact (tick, epsilon) equality.
func (t Time) Equal(o Time) bool {
	return t.inf == o.inf && t.tick == o.tick && t.eps == o.eps
}

// Max returns the later of t and o.
func Max(t, o Time) Time {
	if o.Less(t) {
		return t
	}
	return o
}

// VT converts to the vrtime.Time the evtm event manager actually schedules
// against, folding epsilon in as a real-time offset of one nanosecond
// (epsUnit) per epsilon step so two
// Times that differ only in epsilon still compare correctly as real seconds.
func (t Time) VT() vrtime.Time {
	if t.inf {
		return vrtime.SecondsToTime(math.Inf(1))
	}
	return vrtime.SecondsToTime(t.tick + float64(t.eps)*epsUnit)
}

// Seconds reports the tick component as wall-clock-shaped seconds, for
// logging and trace output.
func (t Time) Seconds() float64 {
	return t.tick
}
