// Package warnings tracks per-user warning accumulators and decides when a
// user's warning load crosses the escalation threshold.
package warnings

import "time"

// Window is how long an individual warning stays active. Warnings older than
// this stop counting toward escalation but remain in the ledger.
const Window = 30 * 24 * time.Hour

// Threshold is the active warning count at which escalation triggers.
const Threshold = 3

// Given is one applied warning inside an accumulator. Act references the
// grant act so re-applying the same approval is detectable.
type Given struct {
	At  time.Time `json:"at"`
	Act int64     `json:"act"`
}

// Accumulator is the warning state for one user in one guild. Count is the
// carried base from before individual tracking; Givens are the individually
// tracked warnings, newest last.
type Accumulator struct {
	User   int64   `json:"user"`
	Guild  int64   `json:"guild"`
	Count  int     `json:"count"`
	Givens []Given `json:"givens,omitempty"`
}

// ActiveCount returns the warning load at the given instant: the carried base
// plus every given still inside the window.
func (a *Accumulator) ActiveCount(now time.Time) int {
	n := a.Count
	for _, g := range a.Givens {
		if now.Sub(g.At) < Window {
			n++
		}
	}
	return n
}

// has reports whether the accumulator already holds the act.
func (a *Accumulator) has(act int64) bool {
	for _, g := range a.Givens {
		if g.Act == act {
			return true
		}
	}
	return false
}
