package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
)

const (
	rate = 1000.0
	bw   = 700.0
)

func totals(b *synth.Builder) []float64 { return samples.Totals(b.Samples()) }

func TestExtractFeatures_CMJ(t *testing.T) {
	f, err := ExtractFeatures(totals(synth.CMJ(rate, bw)), bw, rate)
	require.NoError(t, err)

	assert.True(t, f.HasUnloading)
	assert.InDelta(t, 0.3, f.UnloadingDepth, 1e-6)
	assert.True(t, f.HasCountermovement)
	assert.True(t, f.HasFlight())
	assert.GreaterOrEqual(t, f.FlightMs, 300.0)
	assert.InDelta(t, 2.5, f.RelativePeakForce, 1e-6)
	assert.InDelta(t, 3.0*bw, f.MaxForce, 1e-6)
	assert.Equal(t, 0.0, f.MinForce)
	assert.Greater(t, f.TakeoffIndex, 1700)
	assert.Less(t, f.TakeoffIndex, 1750)
	assert.Greater(t, f.MaxRFD, 0.0)
	assert.Equal(t, 3000.0, f.DurationMs)
}

func TestExtractFeatures_Errors(t *testing.T) {
	_, err := ExtractFeatures(make([]float64, MinWindowSamples-1), bw, rate)
	assert.True(t, errors.Is(err, ErrInsufficientSamples))

	_, err = ExtractFeatures(make([]float64, MinWindowSamples), 0, rate)
	assert.Error(t, err)

	_, err = ExtractFeatures(make([]float64, MinWindowSamples), bw, 0)
	assert.Error(t, err)
}

func TestExtractFeatures_ShortDipIsNotUnloading(t *testing.T) {
	b := synth.New(rate, bw).Hold(1000).HoldAt(30, 0.6).HoldAt(1000, 1.2)
	f, err := ExtractFeatures(totals(b), bw, rate)
	require.NoError(t, err)
	assert.False(t, f.HasUnloading)
	assert.False(t, f.HasCountermovement)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		builder  *synth.Builder
		want     TestType
		minScore float64
	}{
		{"countermovement jump", synth.CMJ(rate, bw), CMJ, 0.99},
		{"squat jump", synth.SquatJump(rate, bw), SJ, 0.99},
		{"drop jump", synth.DropJump(rate, bw), DJ, 0.99},
		{"isometric pull", synth.IMTP(rate, bw), IMTP, 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Classify(totals(tt.builder), bw, rate)
			require.NoError(t, err)
			assert.True(t, res.Detected)
			assert.Equal(t, tt.want, res.Test)
			assert.GreaterOrEqual(t, res.Confidence, tt.minScore)
			require.Len(t, res.Scores, len(Signatures))
			for _, s := range res.Scores {
				assert.GreaterOrEqual(t, s.Confidence, 0.0)
				assert.LessOrEqual(t, s.Confidence, 1.0)
			}
		})
	}
}

func TestClassify_IMTPScoresHighest(t *testing.T) {
	res, err := Classify(totals(synth.IMTP(rate, bw)), bw, rate)
	require.NoError(t, err)
	for _, s := range res.Scores {
		if s.Test != IMTP {
			assert.Less(t, s.Confidence, res.Confidence, s.Test)
		}
	}
}

func TestClassifyFeatures_Undetected(t *testing.T) {
	// A countermovement with no flight and a low peak: CMJ 0.52, IMTP 0.51.
	f := MovementFeatures{HasUnloading: true, UnloadingDepth: 0.3, HasCountermovement: true, RelativePeakForce: 1.2}
	res := ClassifyFeatures(f)
	assert.False(t, res.Detected)
	assert.Equal(t, Undetected, res.Test)
	assert.InDelta(t, 0.52, res.Confidence, 1e-9)
}

func TestClassifyFeatures_TieKeepsFirstSignature(t *testing.T) {
	// CMJ and IMTP score 0.7; with the flight bonus SJ and DJ both clamp to
	// 1.0 for a 2.6 BW peak.
	f := MovementFeatures{FlightSamples: 200, FlightMs: 200, RelativePeakForce: 2.6}
	res := ClassifyFeatures(f)
	require.True(t, res.Detected)
	assert.Equal(t, 1.0, res.Scores[1].Confidence)
	assert.Equal(t, 1.0, res.Scores[2].Confidence)
	assert.Equal(t, SJ, res.Test)
}

func TestSignature_Score(t *testing.T) {
	cmj, ok := SignatureFor(CMJ)
	require.True(t, ok)

	tests := []struct {
		name string
		f    MovementFeatures
		want float64
	}{
		{
			name: "perfect match clamps to one",
			f:    MovementFeatures{HasUnloading: true, UnloadingDepth: 0.3, FlightSamples: 300, FlightMs: 300, HasCountermovement: true, RelativePeakForce: 2.5},
			want: 1.0,
		},
		{
			name: "short flight loses the bonus",
			f:    MovementFeatures{HasUnloading: true, UnloadingDepth: 0.3, FlightSamples: 50, FlightMs: 50, HasCountermovement: true, RelativePeakForce: 2.5},
			want: 1.0,
		},
		{
			name: "depth mismatch is penalised linearly",
			f:    MovementFeatures{HasUnloading: true, UnloadingDepth: 0.55, HasCountermovement: true, RelativePeakForce: 2.5},
			want: 0.60, // 10 + 0 + 20 + 30
		},
		{
			name: "peak decays outside range",
			f:    MovementFeatures{RelativePeakForce: 4.0},
			want: 0.15, // 0 + 0 + 0 + (30 - 0.5*30)
		},
		{
			name: "peak floor at zero",
			f:    MovementFeatures{RelativePeakForce: 0.5},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cmj.Score(tt.f), 1e-9)
		})
	}
}

func TestParseTestType(t *testing.T) {
	tests := []struct {
		in      string
		want    TestType
		wantErr bool
	}{
		{"cmj", CMJ, false},
		{"CMJ", CMJ, false},
		{" sj ", SJ, false},
		{"drop", DJ, false},
		{"imtp", IMTP, false},
		{"", Undetected, false},
		{"auto", Undetected, false},
		{"hop", Undetected, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTestType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
