// Package synth builds deterministic force traces for tests, demos and the
// simulate command. Levels are expressed as multiples of body weight.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

type stage struct {
	ms   float64
	from float64
	to   float64
}

// Builder accumulates piecewise-linear stages and renders them to samples.
type Builder struct {
	rate float64
	bw   float64

	stages []stage
	level  float64

	asymmetry float64
	noiseN    float64
	seed      uint64

	swayMm float64
	swayHz float64
}

// New starts a trace at rate Hz for a subject weighing bodyWeightN. The
// initial level is 1.0 (standing still).
func New(rate, bodyWeightN float64) *Builder {
	return &Builder{rate: rate, bw: bodyWeightN, level: 1}
}

// Hold keeps the current level for ms.
func (b *Builder) Hold(ms float64) *Builder {
	return b.Ramp(ms, b.level)
}

// HoldAt jumps to level and keeps it for ms.
func (b *Builder) HoldAt(ms, level float64) *Builder {
	b.level = level
	return b.Ramp(ms, level)
}

// Ramp moves linearly from the current level to level over ms. The last
// sample of the stage lands exactly on level.
func (b *Builder) Ramp(ms, level float64) *Builder {
	b.stages = append(b.stages, stage{ms: ms, from: b.level, to: level})
	b.level = level
	return b
}

// PadTo holds the current level until the trace is totalMs long.
func (b *Builder) PadTo(totalMs float64) *Builder {
	if rest := totalMs - b.DurationMs(); rest > 0 {
		b.Hold(rest)
	}
	return b
}

// Asymmetry splits the total so that |L-R|/(L+R) equals a, loading the left side.
func (b *Builder) Asymmetry(a float64) *Builder {
	b.asymmetry = a
	return b
}

// Noise adds zero-mean Gaussian noise with the given SD (N) to each side,
// reproducible for a given seed.
func (b *Builder) Noise(sdN float64, seed uint64) *Builder {
	b.noiseN = sdN
	b.seed = seed
	return b
}

// Sway attaches centre-of-pressure data oscillating with the given
// amplitude (mm) and frequency (Hz) around each platform's centre.
func (b *Builder) Sway(amplitudeMm, hz float64) *Builder {
	b.swayMm = amplitudeMm
	b.swayHz = hz
	return b
}

// DurationMs returns the length of the stages added so far.
func (b *Builder) DurationMs() float64 {
	var total float64
	for _, s := range b.stages {
		total += s.ms
	}
	return total
}

// Levels renders the stages as body-weight multiples, one per sample.
func (b *Builder) Levels() []float64 {
	var out []float64
	for _, s := range b.stages {
		n := samples.MsToSamples(s.ms, b.rate)
		for j := 0; j < n; j++ {
			frac := float64(j+1) / float64(n)
			out = append(out, s.from+(s.to-s.from)*frac)
		}
	}
	return out
}

// Samples renders the trace starting at t=0 ms.
func (b *Builder) Samples() []samples.ForceSample {
	levels := b.Levels()
	var rng *rand.Rand
	if b.noiseN > 0 {
		rng = rand.New(rand.NewPCG(b.seed, b.seed^0x9e3779b97f4a7c15))
	}
	dt := 1000 / b.rate
	out := make([]samples.ForceSample, len(levels))
	for i, lvl := range levels {
		total := lvl * b.bw
		left := total * (1 + b.asymmetry) / 2
		right := total - left
		if rng != nil {
			left += rng.NormFloat64() * b.noiseN
			right += rng.NormFloat64() * b.noiseN
		}
		ts := float64(i) * dt
		s := samples.NewSample(ts, left, right)
		if b.swayMm > 0 {
			phase := 2 * math.Pi * b.swayHz * ts / 1000
			dx := b.swayMm * math.Sin(phase)
			dy := b.swayMm * math.Cos(phase) / 2
			s = s.WithCOP(
				samples.Point{X: -150 + dx, Y: dy},
				samples.Point{X: 150 + dx, Y: dy},
			)
		}
		out[i] = s
	}
	return out
}

// Trial renders the trace as a completed trial.
func (b *Builder) Trial() *samples.Trial {
	t, err := samples.NewTrialFromSamples(b.Samples(), b.rate)
	if err != nil {
		// Timestamps are generated strictly increasing.
		panic(err)
	}
	return t
}

// Quiet is a still-standing trace of ms.
func Quiet(rate, bodyWeightN, ms float64) *Builder {
	return New(rate, bodyWeightN).Hold(ms)
}

// CMJ is a countermovement jump: quiet, dip to 0.7 BW, a straight rise
// through braking to a 2.5 BW propulsive peak, 300 ms of flight and a
// landing that settles back to body weight, padded to 3 s.
func CMJ(rate, bodyWeightN float64) *Builder {
	return New(rate, bodyWeightN).
		Hold(1000).
		Ramp(390, 0.7).
		Ramp(260, 2.5).
		Ramp(100, 0.05).
		HoldAt(300, 0).
		Ramp(50, 3.0).
		Ramp(300, 1.0).
		PadTo(3000)
}

// SquatJump starts from a held squat with no countermovement.
func SquatJump(rate, bodyWeightN float64) *Builder {
	return New(rate, bodyWeightN).
		Hold(1000).
		Ramp(250, 2.0).
		Ramp(100, 0.05).
		HoldAt(250, 0).
		Ramp(50, 3.0).
		Ramp(300, 1.0).
		PadTo(2500)
}

// DropJump starts off the plate (stepping from a box), lands, rebounds and
// lands again.
func DropJump(rate, bodyWeightN float64) *Builder {
	return New(rate, bodyWeightN).
		HoldAt(300, 0).
		Ramp(40, 4.0).
		Ramp(60, 1.5).
		Ramp(80, 2.8).
		Ramp(50, 0).
		Hold(400).
		Ramp(50, 3.0).
		Ramp(300, 1.0).
		PadTo(2000)
}

// IMTP is an isometric mid-thigh pull: a sustained effort well above body
// weight with no flight.
func IMTP(rate, bodyWeightN float64) *Builder {
	return New(rate, bodyWeightN).
		Hold(1000).
		Ramp(300, 2.4).
		Hold(2000).
		Ramp(300, 1.0).
		PadTo(4000)
}
