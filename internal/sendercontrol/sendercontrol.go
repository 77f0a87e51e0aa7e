// Package sendercontrol schedules injection-rate retargeting across the
// sender fleet at configured virtual-time ticks.
package sendercontrol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iti/evt/evtm"
	"golang.org/x/exp/slices"

	"github.com/nicmcd/ratesim/internal/engine"
	"github.com/nicmcd/ratesim/internal/simtime"
)

// RateSetter is the capability a sender exposes that SenderControl needs:
// setting its injection rate. sender.Base satisfies this.
type RateSetter interface {
	SetInjectionRate(r float64)
}

// Entry is one (tick, control) pair from the sender_control configuration
// array. Control is either a scalar rate applied to every sender, or a
// set of per-group clauses parsed at load time.
type Entry struct {
	Tick    float64
	Clauses []Clause
}

// Clause assigns Rate to a Group of 1-based sender indices.
type Clause struct {
	Group Group
	Rate  float64
}

// Group selects which senders a clause applies to: "*" (all), a single
// 1-based index, or a 1-based inclusive range.
type Group struct {
	All      bool
	Lo, Hi   int // 1-based inclusive, meaningful when !All
}

func (g Group) contains(idx1 int) bool {
	return g.All || (idx1 >= g.Lo && idx1 <= g.Hi)
}

// Controller drives a fixed fleet of senders (indexed 1..N, matching the
// 1-based convention in configuration) through a schedule of rate
// retargets.
type Controller struct {
	senders []RateSetter
	eng     *engine.Engine
}

// New builds a Controller over senders (index 0 is sender 1, and so on)
// and schedules every entry's retarget event. Schedule validity (unique
// ticks, tick 0 present, terminal rate 0) is checked by ParseSchedule
// before New is ever called.
func New(eng *engine.Engine, senders []RateSetter, schedule []Entry) *Controller {
	c := &Controller{senders: senders, eng: eng}
	for _, e := range schedule {
		c.eng.Schedule(c, e, handleControlEvent, simtime.FromSeconds(e.Tick))
	}
	return c
}

func handleControlEvent(_ *evtm.EventManager, context any, data any) any {
	c := context.(*Controller)
	c.apply(data.(Entry))
	return nil
}

func (c *Controller) apply(e Entry) {
	for idx1 := 1; idx1 <= len(c.senders); idx1++ {
		for _, clause := range e.Clauses {
			if clause.Group.contains(idx1) {
				c.senders[idx1-1].SetInjectionRate(clause.Rate)
			}
		}
	}
}

// ParseSchedule parses the raw (tick, control) pairs from configuration,
// where control is either a JSON number (legacy scalar rate) or a string
// of "group=rate" clauses separated by ':'. numSenders bounds valid
// 1-based indices.
//
// Validation: ticks must be unique across the schedule and the first must
// be 0; no sender index may appear twice within one entry's clause set;
// the final entry must set every sender's rate to 0 (schedule
// termination).
func ParseSchedule(raw []RawEntry, numSenders int) ([]Entry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("sender_control: schedule must have at least one entry")
	}
	entries := make([]Entry, 0, len(raw))
	seenTicks := make(map[float64]bool)

	for i, r := range raw {
		if seenTicks[r.Tick] {
			return nil, fmt.Errorf("sender_control: duplicate tick %v", r.Tick)
		}
		seenTicks[r.Tick] = true
		if i == 0 && r.Tick != 0 {
			return nil, fmt.Errorf("sender_control: first tick must be 0, got %v", r.Tick)
		}

		clauses, err := parseControl(r.Control, numSenders)
		if err != nil {
			return nil, fmt.Errorf("sender_control: tick %v: %w", r.Tick, err)
		}
		entries = append(entries, Entry{Tick: r.Tick, Clauses: clauses})
	}

	last := entries[len(entries)-1]
	if !allZero(last, numSenders) {
		return nil, fmt.Errorf("sender_control: final entry must set every sender's rate to 0")
	}
	return entries, nil
}

// RawEntry is the as-configured (tick, control) pair, before Control's
// group=rate clauses are parsed.
type RawEntry struct {
	Tick    float64
	Control string // a bare numeric string is accepted as the legacy scalar form
}

func parseControl(control string, numSenders int) ([]Clause, error) {
	parts := strings.Split(control, ":")
	clauses := make([]Clause, 0, len(parts))
	var seen []int
	sawAll := false

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		group, rateStr, hasGroup := strings.Cut(part, "=")
		if !hasGroup {
			// Legacy scalar form: the whole control string is just a rate.
			rate, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rate %q: %w", part, err)
			}
			return []Clause{{Group: Group{All: true}, Rate: rate}}, nil
		}

		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q in clause %q: %w", rateStr, part, err)
		}

		g, err := parseGroup(group, numSenders)
		if err != nil {
			return nil, fmt.Errorf("invalid group in clause %q: %w", part, err)
		}
		if g.All {
			if sawAll || len(seen) > 0 {
				return nil, fmt.Errorf("clause %q: '*' cannot combine with other clauses", part)
			}
			sawAll = true
		} else {
			if sawAll {
				return nil, fmt.Errorf("clause %q: '*' cannot combine with other clauses", part)
			}
			for idx := g.Lo; idx <= g.Hi; idx++ {
				if slices.Contains(seen, idx) {
					return nil, fmt.Errorf("clause %q: sender index %d appears twice", part, idx)
				}
				seen = append(seen, idx)
			}
		}
		clauses = append(clauses, Clause{Group: g, Rate: rate})
	}

	if len(clauses) == 0 {
		return nil, fmt.Errorf("empty control string")
	}
	return clauses, nil
}

func parseGroup(s string, numSenders int) (Group, error) {
	if s == "*" {
		return Group{All: true}, nil
	}
	if lo, hi, isRange := strings.Cut(s, "-"); isRange {
		loN, err := strconv.Atoi(lo)
		if err != nil {
			return Group{}, fmt.Errorf("invalid range start %q: %w", lo, err)
		}
		hiN, err := strconv.Atoi(hi)
		if err != nil {
			return Group{}, fmt.Errorf("invalid range end %q: %w", hi, err)
		}
		if loN < 1 || hiN < loN || hiN > numSenders {
			return Group{}, fmt.Errorf("range %d-%d out of [1,%d]", loN, hiN, numSenders)
		}
		return Group{Lo: loN, Hi: hiN}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Group{}, fmt.Errorf("invalid sender index %q: %w", s, err)
	}
	if n < 1 || n > numSenders {
		return Group{}, fmt.Errorf("sender index %d out of [1,%d]", n, numSenders)
	}
	return Group{Lo: n, Hi: n}, nil
}

func allZero(e Entry, numSenders int) bool {
	for idx1 := 1; idx1 <= numSenders; idx1++ {
		covered := false
		for _, c := range e.Clauses {
			if c.Group.contains(idx1) {
				covered = covered || true
				if c.Rate != 0 {
					return false
				}
			}
		}
		if !covered {
			return false
		}
	}
	return true
}
