package phase

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// Rules is the transition table shared by the live machine and batch
// segmentation, bound to one body weight and sample rate.
type Rules struct {
	Thresholds
	BodyWeightN     float64
	SampleRate      float64
	QuietRunSamples int
	// RequireLookback gates braking→propulsion on the recent trace turning
	// upward after a non-rising stretch, or on the centre of mass having
	// started to rise. Only the live machine sets it.
	RequireLookback bool
}

// NewRules binds th to a body weight and sample rate.
func NewRules(th Thresholds, bodyWeightN, sampleRate float64, live bool) Rules {
	return Rules{
		Thresholds:      th,
		BodyWeightN:     bodyWeightN,
		SampleRate:      sampleRate,
		QuietRunSamples: samples.MsToSamples(th.QuietRunMs, sampleRate),
		RequireLookback: live,
	}
}

// HistoryLen is how many recent smoothed samples Next needs.
func (r Rules) HistoryLen() int {
	return max(r.QuietRunSamples, r.LookbackSamples)
}

// Next returns the phase after observing force with the given history of
// smoothed forces (oldest first, current sample last).
func (r Rules) Next(cur Phase, force float64, history []float64) Phase {
	return r.next(cur, force, history, false)
}

// next is Next with rising set once the centre of mass, having dipped, is
// moving upward again.
func (r Rules) next(cur Phase, force float64, history []float64, rising bool) Phase {
	if r.BodyWeightN <= 0 {
		return cur
	}
	rel := force / r.BodyWeightN

	switch cur {
	case QuietStanding:
		switch {
		case rel < r.Flight:
			return Flight
		case !r.SkipUnloading && rel < r.Unloading:
			return Unloading
		case rel > r.Braking:
			return Braking
		}
	case Unloading:
		switch {
		case rel > r.Braking:
			return Braking
		case rel < r.Flight:
			return Flight
		case r.settled(history):
			return QuietStanding
		}
	case Braking:
		switch {
		case rel < r.Flight:
			return Flight
		case rel > r.Propulsion && (!r.RequireLookback || rising || r.turning(history)):
			return Propulsion
		case r.settled(history):
			return QuietStanding
		}
	case Propulsion:
		switch {
		case rel < r.Flight:
			return Flight
		case r.settled(history):
			return QuietStanding
		}
	case Flight:
		if rel > r.Landing {
			return Landing
		}
	case Landing:
		switch {
		case rel < r.Flight:
			return Flight
		case r.settled(history):
			return QuietStanding
		}
	default:
		return QuietStanding
	}
	return cur
}

// settled reports whether the last QuietRunSamples of history sit inside
// the quiet band.
func (r Rules) settled(history []float64) bool {
	n := r.QuietRunSamples
	if n <= 0 || len(history) < n {
		return false
	}
	lo := (1 - r.QuietBand) * r.BodyWeightN
	hi := (1 + r.QuietBand) * r.BodyWeightN
	for _, v := range history[len(history)-n:] {
		if v < lo || v > hi {
			return false
		}
	}
	return true
}

// turning reports whether the lookback window holds at least one
// non-rising step before a rising current step, i.e. the trace levelled off
// or dipped around the braking peak and is now climbing again.
func (r Rules) turning(history []float64) bool {
	n := min(len(history), r.LookbackSamples)
	if n < 3 {
		return false
	}
	h := history[len(history)-n:]
	if h[n-1] <= h[n-2] {
		return false
	}
	for i := 1; i < n-1; i++ {
		if h[i] <= h[i-1] {
			return true
		}
	}
	return false
}

// Machine is the incremental form of the rules. It is not safe for
// concurrent use; a live session owns exactly one.
type Machine struct {
	rules   Rules
	state   Phase
	history []float64
	index   int
	entered int

	// Centre-of-mass velocity in g·s since force left the quiet band.
	velocity float64
	dipped   bool
}

// NewMachine starts in QuietStanding.
func NewMachine(rules Rules) *Machine {
	return &Machine{rules: rules, state: QuietStanding}
}

// Step applies one transition for force given an explicit history and
// returns the resulting phase.
func (m *Machine) Step(force float64, history []float64) Phase {
	m.integrate(force)
	next := m.rules.next(m.state, force, history, m.dipped && m.velocity >= 0)
	if next != m.state {
		m.state = next
		m.entered = m.index
	}
	m.index++
	return next
}

func (m *Machine) integrate(force float64) {
	r := m.rules
	if r.BodyWeightN <= 0 || r.SampleRate <= 0 {
		return
	}
	rel := force / r.BodyWeightN
	if m.state == QuietStanding && math.Abs(rel-1) <= r.QuietBand {
		m.velocity, m.dipped = 0, false
		return
	}
	m.velocity += (rel - 1) / r.SampleRate
	if m.velocity < 0 {
		m.dipped = true
	}
}

// Update records a smoothed force in the machine's own history and steps.
// It reports whether the phase changed.
func (m *Machine) Update(smoothed float64) (Phase, bool) {
	m.history = append(m.history, smoothed)
	if n := m.rules.HistoryLen(); len(m.history) > n {
		m.history = append(m.history[:0], m.history[len(m.history)-n:]...)
	}
	prev := m.state
	p := m.Step(smoothed, m.history)
	return p, p != prev
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.state }

// SamplesInPhase returns how many samples have been seen since the last
// transition.
func (m *Machine) SamplesInPhase() int { return m.index - m.entered }

// Rules returns the bound transition rules.
func (m *Machine) Rules() Rules { return m.rules }

// SetBodyWeight rebinds the rules to a new body weight without touching
// the current phase or history.
func (m *Machine) SetBodyWeight(bw float64) { m.rules.BodyWeightN = bw }

// SetRules swaps the transition table, keeping the current phase and as
// much history as the new rules need.
func (m *Machine) SetRules(r Rules) {
	m.rules = r
	if n := r.HistoryLen(); len(m.history) > n {
		m.history = append(m.history[:0], m.history[len(m.history)-n:]...)
	}
}

// Force overrides the current phase, as a user correction.
func (m *Machine) Force(p Phase) {
	if p != m.state {
		m.state = p
		m.entered = m.index
	}
}

// Reset returns to QuietStanding and clears the history.
func (m *Machine) Reset() {
	m.state = QuietStanding
	m.history = m.history[:0]
	m.index = 0
	m.entered = 0
	m.velocity, m.dipped = 0, false
}
