package phase

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
)

// Thresholds drive the state machine. Force levels are multiples of body
// weight; durations are in milliseconds.
type Thresholds struct {
	QuietBand       float64 `json:"quiet_band"` // ± fraction of BW treated as standing still
	Unloading       float64 `json:"unloading"`
	Braking         float64 `json:"braking"`
	Propulsion      float64 `json:"propulsion"`
	Flight          float64 `json:"flight"`
	Landing         float64 `json:"landing"`
	SmoothingWindow int     `json:"smoothing_window"` // samples
	MinPhaseMs      float64 `json:"min_phase_ms"`
	QuietRunMs      float64 `json:"quiet_run_ms"`     // time inside the quiet band before returning to quiet
	LookbackSamples int     `json:"lookback_samples"` // live braking→propulsion check
	SkipUnloading   bool    `json:"skip_unloading"`
}

// DefaultThresholds returns the base table for a test type. Undetected
// falls back to the countermovement jump table.
func DefaultThresholds(test classify.TestType) Thresholds {
	th := Thresholds{
		QuietBand:       0.02,
		Unloading:       0.90,
		Braking:         1.10,
		Propulsion:      1.20,
		Flight:          0.10,
		Landing:         0.50,
		SmoothingWindow: 5,
		MinPhaseMs:      30,
		QuietRunMs:      100,
		LookbackSamples: 20,
	}
	switch test {
	case classify.SJ:
		th.SkipUnloading = true
	case classify.DJ:
		th.SkipUnloading = true
		th.SmoothingWindow = 3
		th.MinPhaseMs = 20
	case classify.IMTP:
		th.SkipUnloading = true
		th.MinPhaseMs = 50
	}
	return th
}

// Level is the athlete's training status.
type Level string

const (
	LevelRecreational Level = "recreational"
	LevelTrained      Level = "trained"
	LevelElite        Level = "elite"
)

// Sport is a coarse sport category.
type Sport string

const (
	SportGeneral   Sport = "general"
	SportPower     Sport = "power"     // sprinting, throwing, weightlifting
	SportAesthetic Sport = "aesthetic" // gymnastics, diving, dance
	SportEndurance Sport = "endurance"
	SportTeam      Sport = "team"
)

// Athlete holds the demographic inputs for threshold adaptation. Zero
// values mean unknown and leave the thresholds unchanged.
type Athlete struct {
	Age   int   `json:"age,omitempty"`
	Level Level `json:"level,omitempty"`
	Sport Sport `json:"sport,omitempty"`
}

// TrialOutcome summarises a previous trial for the same athlete and test.
type TrialOutcome struct {
	RelativePeakForce float64 `json:"relative_peak_force"`
	Confidence        float64 `json:"confidence"`
}

const (
	youthAgeMax       = 18
	mastersAgeMin     = 35
	minPriorTrials    = 3
	lowPeakRelForce   = 1.5
	lowConfidence     = 0.6
	priorPullFraction = 0.8
)

// Adaptive scales the base thresholds for test by athlete demographics and
// the outcomes of earlier trials.
func Adaptive(test classify.TestType, a Athlete, prior []TrialOutcome) Thresholds {
	th := DefaultThresholds(test)

	switch {
	case a.Age > 0 && a.Age < youthAgeMax:
		th.SmoothingWindow--
		th.MinPhaseMs *= 0.9
		th.QuietBand *= 0.9
	case a.Age >= mastersAgeMin:
		th.SmoothingWindow++
		th.MinPhaseMs *= 1.2
		th.QuietBand = 0.025
	}

	switch a.Level {
	case LevelRecreational:
		th.SmoothingWindow += 2
		th.MinPhaseMs *= 1.25
	case LevelElite:
		th.SmoothingWindow--
		th.MinPhaseMs *= 0.8
	}

	switch a.Sport {
	case SportPower:
		th.Braking *= 1.05
		th.Propulsion *= 1.05
	case SportAesthetic:
		th.MinPhaseMs *= 0.85
		th.SmoothingWindow--
	}

	if len(prior) >= minPriorTrials {
		var peak, conf float64
		for _, p := range prior {
			peak += p.RelativePeakForce
			conf += p.Confidence
		}
		peak /= float64(len(prior))
		conf /= float64(len(prior))
		if peak < lowPeakRelForce {
			// Weak efforts never clear the standard propulsion level.
			th.Braking = 1 + (th.Braking-1)*priorPullFraction
			th.Propulsion = 1 + (th.Propulsion-1)*priorPullFraction
		}
		if conf < lowConfidence {
			th.QuietBand *= 1.5
		}
	}

	return th.clamped()
}

// clamped keeps every threshold inside a range where the state machine
// still makes sense.
func (th Thresholds) clamped() Thresholds {
	th.QuietBand = clamp(th.QuietBand, 0.01, 0.05)
	th.Unloading = clamp(th.Unloading, 0.70, 1-th.QuietBand)
	th.Braking = clamp(th.Braking, 1+th.QuietBand, 1.30)
	th.Propulsion = clamp(th.Propulsion, th.Braking+0.02, 1.50)
	th.Flight = clamp(th.Flight, 0.02, 0.20)
	th.Landing = clamp(th.Landing, 0.30, 0.80)
	th.MinPhaseMs = clamp(th.MinPhaseMs, 10, 200)
	th.QuietRunMs = clamp(th.QuietRunMs, 20, 1000)
	if th.SmoothingWindow < 1 {
		th.SmoothingWindow = 1
	}
	if th.SmoothingWindow > 15 {
		th.SmoothingWindow = 15
	}
	if th.LookbackSamples < 3 {
		th.LookbackSamples = 3
	}
	return th
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
