package phase

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
)

const (
	rate = 1000.0
	bw   = 700.0
)

func TestDefaultThresholds(t *testing.T) {
	cmj := DefaultThresholds(classify.CMJ)
	assert.False(t, cmj.SkipUnloading)
	assert.Equal(t, 5, cmj.SmoothingWindow)
	assert.Equal(t, 30.0, cmj.MinPhaseMs)
	assert.Equal(t, 0.02, cmj.QuietBand)

	assert.True(t, DefaultThresholds(classify.SJ).SkipUnloading)
	assert.True(t, DefaultThresholds(classify.IMTP).SkipUnloading)
	assert.Equal(t, 50.0, DefaultThresholds(classify.IMTP).MinPhaseMs)

	dj := DefaultThresholds(classify.DJ)
	assert.Equal(t, 3, dj.SmoothingWindow)
	assert.Equal(t, 20.0, dj.MinPhaseMs)

	if diff := cmp.Diff(cmj, DefaultThresholds(classify.Undetected)); diff != "" {
		t.Errorf("undetected thresholds mismatch (-cmj +undetected):\n%s", diff)
	}
}

func TestAdaptive(t *testing.T) {
	base := DefaultThresholds(classify.CMJ)
	with := func(f func(*Thresholds)) Thresholds {
		th := base
		f(&th)
		return th
	}
	lowPeak := []TrialOutcome{{1.3, 0.9}, {1.3, 0.9}, {1.3, 0.9}}
	lowConf := []TrialOutcome{{2.5, 0.4}, {2.5, 0.5}, {2.5, 0.5}}

	tests := []struct {
		name    string
		athlete Athlete
		prior   []TrialOutcome
		want    Thresholds
	}{
		{"unknown athlete", Athlete{}, nil, base},
		{"youth", Athlete{Age: 15}, nil, with(func(th *Thresholds) {
			th.SmoothingWindow = 4
			th.MinPhaseMs = 27
			th.QuietBand = 0.018
		})},
		{"masters", Athlete{Age: 45}, nil, with(func(th *Thresholds) {
			th.SmoothingWindow = 6
			th.MinPhaseMs = 36
			th.QuietBand = 0.025
		})},
		{"recreational", Athlete{Level: LevelRecreational}, nil, with(func(th *Thresholds) {
			th.SmoothingWindow = 7
			th.MinPhaseMs = 37.5
		})},
		{"elite", Athlete{Level: LevelElite}, nil, with(func(th *Thresholds) {
			th.SmoothingWindow = 4
			th.MinPhaseMs = 24
		})},
		{"power sport", Athlete{Sport: SportPower}, nil, with(func(th *Thresholds) {
			th.Braking = 1.155
			th.Propulsion = 1.26
		})},
		{"aesthetic sport", Athlete{Sport: SportAesthetic}, nil, with(func(th *Thresholds) {
			th.SmoothingWindow = 4
			th.MinPhaseMs = 25.5
		})},
		{"weak prior trials", Athlete{}, lowPeak, with(func(th *Thresholds) {
			th.Braking = 1.08
			th.Propulsion = 1.16
		})},
		{"unreliable prior trials", Athlete{}, lowConf, with(func(th *Thresholds) {
			th.QuietBand = 0.03
		})},
		{"too few prior trials", Athlete{}, lowPeak[:2], base},
	}
	approx := cmp.Comparer(func(a, b float64) bool {
		d := a - b
		return d < 1e-9 && d > -1e-9
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adaptive(classify.CMJ, tt.athlete, tt.prior)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Adaptive mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAdaptive_Clamps(t *testing.T) {
	th := Adaptive(classify.DJ, Athlete{Age: 12, Level: LevelElite, Sport: SportAesthetic}, nil)
	assert.Equal(t, 1, th.SmoothingWindow)
	assert.GreaterOrEqual(t, th.MinPhaseMs, 10.0)
	assert.GreaterOrEqual(t, th.QuietBand, 0.01)
	assert.Greater(t, th.Propulsion, th.Braking)
}

func TestRules_Next(t *testing.T) {
	th := DefaultThresholds(classify.CMJ)
	th.QuietRunMs = 3
	r := NewRules(th, 1000, rate, false)
	quiet := []float64{1000, 1000, 1000}
	noisy := []float64{1000, 1100, 1000}

	tests := []struct {
		name    string
		cur     Phase
		force   float64
		history []float64
		want    Phase
	}{
		{"quiet stays quiet", QuietStanding, 1010, quiet, QuietStanding},
		{"quiet to unloading", QuietStanding, 850, nil, Unloading},
		{"quiet to braking", QuietStanding, 1150, nil, Braking},
		{"quiet off plate", QuietStanding, 50, nil, Flight},
		{"unloading to braking", Unloading, 1150, nil, Braking},
		{"unloading holds", Unloading, 800, noisy, Unloading},
		{"unloading settles", Unloading, 1000, quiet, QuietStanding},
		{"braking holds", Braking, 1150, nil, Braking},
		{"braking to propulsion", Braking, 1250, nil, Propulsion},
		{"braking to flight", Braking, 50, nil, Flight},
		{"propulsion to flight", Propulsion, 90, nil, Flight},
		{"propulsion holds", Propulsion, 1800, noisy, Propulsion},
		{"flight holds", Flight, 400, nil, Flight},
		{"flight to landing", Flight, 600, nil, Landing},
		{"landing holds", Landing, 1500, noisy, Landing},
		{"landing to flight", Landing, 20, nil, Flight},
		{"landing settles", Landing, 1000, quiet, QuietStanding},
		{"unknown phase resets", Phase("bogus"), 1000, nil, QuietStanding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Next(tt.cur, tt.force, tt.history))
		})
	}
}

func TestRules_SkipUnloading(t *testing.T) {
	r := NewRules(DefaultThresholds(classify.SJ), 1000, rate, false)
	assert.Equal(t, QuietStanding, r.Next(QuietStanding, 850, nil))
	assert.Equal(t, Braking, r.Next(QuietStanding, 1150, nil))
}

func TestRules_LookbackGatesPropulsion(t *testing.T) {
	r := NewRules(DefaultThresholds(classify.CMJ), 1000, rate, true)

	rising := []float64{1100, 1120, 1140, 1160, 1180, 1200, 1220, 1250}
	assert.Equal(t, Braking, r.Next(Braking, 1250, rising), "monotonic rise is not a turn")

	dipThenRise := []float64{1300, 1280, 1260, 1240, 1245, 1250}
	assert.Equal(t, Propulsion, r.Next(Braking, 1250, dipThenRise))

	plateauThenRise := []float64{1150, 1150, 1150, 1150, 1250}
	assert.Equal(t, Propulsion, r.Next(Braking, 1250, plateauThenRise))

	falling := []float64{1300, 1290, 1280, 1270, 1260}
	assert.Equal(t, Braking, r.Next(Braking, 1260, falling))

	assert.Equal(t, Braking, r.Next(Braking, 1250, []float64{1200, 1250}), "too little history")
}

func TestRules_ZeroBodyWeight(t *testing.T) {
	r := NewRules(DefaultThresholds(classify.CMJ), 0, rate, false)
	assert.Equal(t, Flight, r.Next(Flight, 5000, nil))
}

func TestMachine_LiveCMJ(t *testing.T) {
	th := DefaultThresholds(classify.CMJ)
	m := NewMachine(NewRules(th, bw, rate, true))

	var raw []float64
	var visited []Phase
	for _, s := range synth.CMJ(rate, bw).Samples() {
		raw = append(raw, s.Total)
		p, changed := m.Update(samples.TrailingAverage(raw, th.SmoothingWindow))
		if changed {
			visited = append(visited, p)
		}
	}
	want := []Phase{Unloading, Braking, Propulsion, Flight, Landing, QuietStanding}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("phase sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, QuietStanding, m.Phase())
	assert.Greater(t, m.SamplesInPhase(), 100)
}

func TestMachine_PropulsionNeedsTurnOrRise(t *testing.T) {
	th := DefaultThresholds(classify.CMJ)
	run := func(b *synth.Builder) Phase {
		m := NewMachine(NewRules(th, bw, rate, true))
		var raw []float64
		for _, s := range b.Samples() {
			raw = append(raw, s.Total)
			m.Update(samples.TrailingAverage(raw, th.SmoothingWindow))
		}
		return m.Phase()
	}

	// No countermovement and no levelling off: nothing says the braking
	// peak has passed.
	assert.Equal(t, Braking, run(synth.New(rate, bw).Hold(200).Ramp(200, 2.0)))

	// After a dip the centre of mass turns upward part way up the rise.
	assert.Equal(t, Propulsion, run(synth.New(rate, bw).Hold(200).Ramp(300, 0.7).Ramp(200, 2.0)))
}

func TestMachine_ForceAndReset(t *testing.T) {
	m := NewMachine(NewRules(DefaultThresholds(classify.CMJ), bw, rate, true))
	for i := 0; i < 10; i++ {
		m.Update(bw)
	}
	m.Force(Flight)
	assert.Equal(t, Flight, m.Phase())
	assert.Equal(t, 0, m.SamplesInPhase())

	m.SetBodyWeight(800)
	assert.Equal(t, 800.0, m.Rules().BodyWeightN)
	assert.Equal(t, Flight, m.Phase())

	m.Reset()
	assert.Equal(t, QuietStanding, m.Phase())
}

func assertWellFormed(t *testing.T, segs []PhaseSegment, n int) {
	t.Helper()
	require.NotEmpty(t, segs)
	assert.Equal(t, 0, segs[0].Start)
	for i, s := range segs {
		assert.LessOrEqual(t, s.Start, s.End)
		assert.Less(t, s.End, n)
		if i > 0 {
			assert.Equal(t, segs[i-1].End+1, s.Start, "segments %d and %d are not contiguous", i-1, i)
			assert.NotEqual(t, segs[i-1].Phase, s.Phase, "adjacent segments share a phase")
		}
	}
}

func TestSegment_CMJ(t *testing.T) {
	trial := synth.CMJ(rate, bw).Trial()
	segs := Segment(trial, bw, classify.CMJ, DefaultThresholds(classify.CMJ))
	assertWellFormed(t, segs, trial.Len())

	var got []Phase
	for _, s := range segs {
		got = append(got, s.Phase)
	}
	want := []Phase{QuietStanding, Unloading, Braking, Propulsion, Flight, Landing, QuietStanding}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}

	flight, ok := Find(segs, Flight)
	require.True(t, ok)
	assert.InDelta(t, 310, flight.DurationMs, 20)
	assert.Less(t, flight.AvgForce, 0.1*bw)

	prop, _ := Find(segs, Propulsion)
	assert.InDelta(t, 2.5*bw, prop.PeakForce, 1e-6)

	for _, s := range segs {
		assert.GreaterOrEqual(t, s.Quality, 0.0)
		assert.LessOrEqual(t, s.Quality, 1.0)
		assert.Equal(t, BandFor(s.Quality), s.Band)
	}

	d := Assess(segs)
	assert.True(t, d.Valid)
	assert.Equal(t, 4, d.CoreFound)
	assert.Equal(t, 6, d.DistinctPhases)
	assert.Greater(t, d.Confidence, 0.75)
}

func TestSegment_FastRiseKeepsBraking(t *testing.T) {
	for _, noise := range []float64{0, 5, 15} {
		t.Run(fmt.Sprintf("noise %.0f N", noise), func(t *testing.T) {
			trial := synth.New(rate, bw).
				Hold(1000).
				Ramp(200, 0.7).
				Ramp(250, 2.5).
				Ramp(100, 0.05).
				HoldAt(300, 0).
				Ramp(50, 3.0).
				Ramp(300, 1.0).
				PadTo(3000).
				Noise(noise, 42).
				Trial()
			segs := Segment(trial, bw, classify.CMJ, DefaultThresholds(classify.CMJ))
			assertWellFormed(t, segs, trial.Len())

			braking, ok := Find(segs, Braking)
			require.True(t, ok, "no braking segment in %v", phasesOf(segs))
			prop, ok := Find(segs, Propulsion)
			require.True(t, ok)
			unloading, ok := Find(segs, Unloading)
			require.True(t, ok)
			assert.Equal(t, unloading.End+1, braking.Start)
			assert.Equal(t, braking.End+1, prop.Start)
			// The centre of mass stops descending about 140 ms into the rise.
			assert.InDelta(t, 85, braking.DurationMs, 25)
			assert.True(t, Assess(segs).Valid)
		})
	}
}

func phasesOf(segs []PhaseSegment) []Phase {
	out := make([]Phase, len(segs))
	for i, s := range segs {
		out[i] = s.Phase
	}
	return out
}

func TestSegment_SquatJumpHasNoUnloading(t *testing.T) {
	trial := synth.SquatJump(rate, bw).Trial()
	segs := Segment(trial, bw, classify.SJ, DefaultThresholds(classify.SJ))
	assertWellFormed(t, segs, trial.Len())
	_, ok := Find(segs, Unloading)
	assert.False(t, ok)
	_, ok = Find(segs, Flight)
	assert.True(t, ok)
}

func TestSegmentForces_ShortSegments(t *testing.T) {
	th := DefaultThresholds(classify.CMJ)
	th.SmoothingWindow = 1
	th.QuietRunMs = 5
	th.MinPhaseMs = 30

	tests := []struct {
		name string
		b    *synth.Builder
		want []PhaseSegment
	}{
		{
			name: "short blip folds into following quiet and merges",
			b:    synth.New(rate, 1000).Hold(100).HoldAt(10, 1.15).HoldAt(100, 1.0),
			want: []PhaseSegment{{Phase: QuietStanding, Start: 0, End: 209}},
		},
		{
			name: "short braking folds into propulsion",
			b:    synth.New(rate, 1000).Hold(100).HoldAt(10, 1.15).HoldAt(100, 1.3),
			want: []PhaseSegment{
				{Phase: QuietStanding, Start: 0, End: 99},
				{Phase: Propulsion, Start: 100, End: 209},
			},
		},
		{
			name: "short trailing run is dropped",
			b:    synth.New(rate, 1000).Hold(100).HoldAt(10, 1.15),
			want: []PhaseSegment{{Phase: QuietStanding, Start: 0, End: 99}},
		},
	}
	only := cmp.Comparer(func(a, b PhaseSegment) bool {
		return a.Phase == b.Phase && a.Start == b.Start && a.End == b.End
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentForces(samples.Totals(tt.b.Samples()), 1000, rate, classify.CMJ, th)
			if diff := cmp.Diff(tt.want, got, only); diff != "" {
				t.Errorf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentForces_Degenerate(t *testing.T) {
	th := DefaultThresholds(classify.CMJ)
	assert.Nil(t, SegmentForces(nil, bw, rate, classify.CMJ, th))
	assert.Nil(t, SegmentForces([]float64{700}, 0, rate, classify.CMJ, th))
	assert.Nil(t, SegmentForces([]float64{700}, bw, 0, classify.CMJ, th))
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score float64
		want  QualityBand
	}{
		{1.0, BandExcellent},
		{0.85, BandExcellent},
		{0.84, BandGood},
		{0.70, BandGood},
		{0.5, BandFair},
		{0.49, BandPoor},
		{0, BandPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.score), "score %v", tt.score)
	}
}

func TestSegmentQuality(t *testing.T) {
	flat := func(n int, v float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	tests := []struct {
		name   string
		seg    PhaseSegment
		forces []float64
		want   float64
	}{
		{"ideal braking", PhaseSegment{Phase: Braking, DurationMs: 100}, flat(100, 800), 1.0},
		{"short braking", PhaseSegment{Phase: Braking, DurationMs: 25}, flat(25, 800), 0.7},
		{"long flight", PhaseSegment{Phase: Flight, DurationMs: 2000}, flat(2000, 0), 0.7},
		{"empty", PhaseSegment{Phase: Landing}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SegmentQuality(tt.seg, tt.forces, bw, classify.CMJ), 1e-9)
		})
	}
}

func TestAssess(t *testing.T) {
	assert.False(t, Assess(nil).Valid)

	two := []PhaseSegment{
		{Phase: QuietStanding, Quality: 1},
		{Phase: Flight, Quality: 1},
	}
	d := Assess(two)
	assert.Equal(t, 2, d.DistinctPhases)
	assert.InDelta(t, 0.75, d.Confidence, 1e-9)
	assert.False(t, d.Valid, "fewer than three distinct phases")

	poor := []PhaseSegment{
		{Phase: Unloading, Quality: 0.2},
		{Phase: Landing, Quality: 0.2},
		{Phase: Flight, Quality: 0.2},
	}
	d = Assess(poor)
	assert.InDelta(t, 0.225, d.Confidence, 1e-9)
	assert.False(t, d.Valid)
}

func TestPhase_Valid(t *testing.T) {
	for _, p := range All() {
		assert.True(t, p.Valid())
		assert.NotEmpty(t, p.Label())
	}
	assert.False(t, Phase("hover").Valid())
}
