// Package metrics derives physical quantities from a force-time series. All
// functions assume a constant sample rate; resample irregular recordings
// first.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/forceplate.report/internal/units"
)

// ErrNotComputable marks a metric whose preconditions are not met.
var ErrNotComputable = errors.New("metric not computable")

// Force levels as multiples of body weight.
const (
	TakeoffLevel = 0.10
	LandingLevel = 0.50
)

func notComputable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotComputable, fmt.Sprintf(format, args...))
}

func checkInputs(forces []float64, bodyWeightN, rate float64) error {
	switch {
	case len(forces) < 2:
		return notComputable("need at least 2 samples, have %d", len(forces))
	case bodyWeightN <= 0:
		return notComputable("body weight must be positive")
	case rate <= 0:
		return notComputable("sample rate must be positive")
	}
	return nil
}

// Impulse integrates forces (N) with the trapezoidal rule, in N·s.
func Impulse(forces []float64, rate float64) float64 {
	if len(forces) < 2 || rate <= 0 {
		return 0
	}
	dt := 1 / rate
	var j float64
	for i := 1; i < len(forces); i++ {
		j += (forces[i] + forces[i-1]) / 2 * dt
	}
	return j
}

// NetImpulse is Impulse after subtracting body weight from every sample.
// The subtraction happens per sample so a trace sitting exactly at body
// weight integrates to exactly zero.
func NetImpulse(forces []float64, bodyWeightN, rate float64) float64 {
	if len(forces) < 2 || rate <= 0 {
		return 0
	}
	dt := 1 / rate
	var j float64
	for i := 1; i < len(forces); i++ {
		j += ((forces[i] - bodyWeightN) + (forces[i-1] - bodyWeightN)) / 2 * dt
	}
	return j
}

// TakeoffIndex returns the first sample where force drops below 10% of
// body weight from a loaded sample.
func TakeoffIndex(forces []float64, bodyWeightN float64) (int, bool) {
	th := TakeoffLevel * bodyWeightN
	for i := 1; i < len(forces); i++ {
		if forces[i] < th && forces[i-1] >= th {
			return i, true
		}
	}
	return 0, false
}

// LandingIndex returns the first sample after takeoff where force exceeds
// 50% of body weight. It reports false when the trial ends first.
func LandingIndex(forces []float64, bodyWeightN float64, takeoff int) (int, bool) {
	th := LandingLevel * bodyWeightN
	for i := takeoff + 1; i < len(forces); i++ {
		if forces[i] > th {
			return i, true
		}
	}
	return 0, false
}

// TakeoffVelocity integrates net force up to takeoff and divides by body
// mass, in m/s. Negative values are returned as-is.
func TakeoffVelocity(forces []float64, bodyWeightN, rate float64, takeoff int) (float64, error) {
	if err := checkInputs(forces, bodyWeightN, rate); err != nil {
		return 0, err
	}
	if takeoff <= 0 || takeoff >= len(forces) {
		return 0, notComputable("takeoff index %d out of range", takeoff)
	}
	m := units.MassKg(bodyWeightN)
	return NetImpulse(forces[:takeoff+1], bodyWeightN, rate) / m, nil
}

// JumpHeightImpulse applies the impulse-momentum theorem: h = v²/2g, in
// cm. A net downward impulse yields exactly zero.
func JumpHeightImpulse(forces []float64, bodyWeightN, rate float64, takeoff int) (float64, error) {
	v, err := TakeoffVelocity(forces, bodyWeightN, rate, takeoff)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, nil
	}
	return v * v / (2 * units.Gravity) * 100, nil
}

// JumpHeightFlightTime uses h = g·t²/8, in cm.
func JumpHeightFlightTime(flightMs float64) float64 {
	if flightMs <= 0 {
		return 0
	}
	t := flightMs / 1000
	return units.Gravity * t * t / 8 * 100
}

// PeakRFD returns the steepest rise over any window of windowMs within
// forces, in N/s.
func PeakRFD(forces []float64, rate, windowMs float64) (float64, error) {
	w := int(windowMs*rate/1000 + 0.5)
	if w < 1 || len(forces) <= w {
		return 0, notComputable("need more than %d samples for a %.0f ms window", w, windowMs)
	}
	dt := float64(w) / rate
	best := math.Inf(-1)
	for i := 0; i+w < len(forces); i++ {
		best = math.Max(best, (forces[i+w]-forces[i])/dt)
	}
	return best, nil
}

// RFDWindow is a standard reporting window relative to movement onset.
type RFDWindow struct {
	Name    string
	StartMs float64
	EndMs   float64
}

// StandardRFDWindows are the isometric reporting windows.
var StandardRFDWindows = []RFDWindow{
	{"rfd_0_50", 0, 50},
	{"rfd_0_100", 0, 100},
	{"rfd_0_150", 0, 150},
	{"rfd_0_200", 0, 200},
	{"rfd_50_100", 50, 100},
	{"rfd_100_200", 100, 200},
}

// WindowRFD is Δforce/Δt between two offsets from onset, in N/s.
func WindowRFD(forces []float64, rate float64, onset int, w RFDWindow) (float64, error) {
	a := onset + int(w.StartMs*rate/1000+0.5)
	b := onset + int(w.EndMs*rate/1000+0.5)
	if onset < 0 || b >= len(forces) || b <= a {
		return 0, notComputable("%s window beyond trial end", w.Name)
	}
	return (forces[b] - forces[a]) / ((w.EndMs - w.StartMs) / 1000), nil
}

// Velocity integrates acceleration (F-BW)/m from rest, in m/s, one value
// per sample.
func Velocity(forces []float64, bodyWeightN, rate float64) []float64 {
	v := make([]float64, len(forces))
	if len(forces) == 0 || bodyWeightN <= 0 || rate <= 0 {
		return v
	}
	m := units.MassKg(bodyWeightN)
	dt := 1 / rate
	for i := 1; i < len(forces); i++ {
		a0 := (forces[i-1] - bodyWeightN) / m
		a1 := (forces[i] - bodyWeightN) / m
		v[i] = v[i-1] + (a0+a1)/2*dt
	}
	return v
}

// Power returns peak instantaneous power and the mean over the propulsive
// samples (positive power), in W.
func Power(forces []float64, bodyWeightN, rate float64) (peak, mean float64, err error) {
	if err := checkInputs(forces, bodyWeightN, rate); err != nil {
		return 0, 0, err
	}
	v := Velocity(forces, bodyWeightN, rate)
	var sum float64
	n := 0
	for i, f := range forces {
		p := f * v[i]
		peak = math.Max(peak, p)
		if p > 0 {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0, 0, notComputable("no propulsive samples")
	}
	return peak, sum / float64(n), nil
}

// ContactTimeMs is the ground contact that ends at takeoff, measured from
// the preceding first contact. It requires the subject to arrive from the
// air, as in a drop jump.
func ContactTimeMs(forces []float64, bodyWeightN, rate float64, takeoff int) (float64, error) {
	th := TakeoffLevel * bodyWeightN
	start := -1
	for i := takeoff - 1; i > 0; i-- {
		if forces[i] >= th && forces[i-1] < th {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, notComputable("no airborne period before contact")
	}
	return float64(takeoff-start) / rate * 1000, nil
}

// RSI is the reactive strength index: height (m) / contact time (s).
func RSI(jumpHeightCm, contactMs float64) (float64, error) {
	if contactMs <= 0 {
		return 0, notComputable("contact time must be positive")
	}
	return (jumpHeightCm / 100) / (contactMs / 1000), nil
}
