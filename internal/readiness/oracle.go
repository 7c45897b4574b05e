// Package readiness decides whether the current document is stable enough
// that element geometry and DOM structure can be trusted for resolution and
// interaction. A single signal is never conclusive, so the oracle layers
// cheap checks before expensive ones and requires consecutive clean samples
// before declaring the page stable.
package readiness

import (
	"log/slog"
	"time"
)

// Sample is the outcome of one readiness probe.
type Sample struct {
	Loading bool
	Reason  string
}

// Prober produces readiness samples against the live page.
type Prober interface {
	Sample() (Sample, error)
}

// State is the oracle's position within one wait call.
type State int

const (
	Unstable State = iota
	CandidateStable
	Stable
	TimedOut
)

// Result reports how a wait ended. Proceed is true for both Stable and
// TimedOut: blocking indefinitely on a possibly-never-settling page is worse
// than acting a moment too early.
type Result struct {
	State      State
	Proceed    bool
	LastReason string
}

// Oracle polls a Prober until the page has produced the required number of
// consecutive clean samples, or the timeout elapses.
type Oracle struct {
	Prober         Prober
	Interval       time.Duration // delay between polls
	RequiredStable int           // consecutive clean samples needed
}

// New returns an oracle with the default 500ms poll interval and a
// two-sample stability requirement.
func New(p Prober) *Oracle {
	return &Oracle{
		Prober:         p,
		Interval:       500 * time.Millisecond,
		RequiredStable: 2,
	}
}

// Wait polls until Stable or timeout. Any loading sample resets the
// consecutive-clean counter. A probe error is treated optimistically as
// "not loading": a spurious stuck-forever diagnosis is the worse failure
// mode for an automated pipeline.
func (o *Oracle) Wait(timeout time.Duration) Result {
	interval := o.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	required := o.RequiredStable
	if required <= 0 {
		required = 2
	}

	deadline := time.Now().Add(timeout)
	clean := 0
	lastReason := ""

	for time.Now().Before(deadline) {
		sample, err := o.Prober.Sample()
		if err != nil {
			slog.Warn("readiness probe failed, assuming ready", "error", err)
			return Result{State: Stable, Proceed: true, LastReason: "probe error (assuming ready)"}
		}

		if sample.Loading {
			clean = 0
			lastReason = sample.Reason
			slog.Debug("page still loading", "reason", sample.Reason)
		} else {
			clean++
			if clean >= required {
				return Result{State: Stable, Proceed: true, LastReason: sample.Reason}
			}
		}

		time.Sleep(interval)
	}

	slog.Warn("readiness wait timed out, proceeding anyway", "timeout", timeout, "last_reason", lastReason)
	return Result{State: TimedOut, Proceed: true, LastReason: lastReason}
}
