package stats

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSWC_ScalesWithSD(t *testing.T) {
	for _, m := range []SWCMethod{SWCCohen, SWCHopkins, SWCIndividual} {
		t.Run(string(m), func(t *testing.T) {
			a, err := SWC(m, 4, 0)
			require.NoError(t, err)
			b, err := SWC(m, 8, 0)
			require.NoError(t, err)
			assert.InDelta(t, 2*a, b, 1e-12)
		})
	}

	got, _ := SWC(SWCCohen, 10, 0)
	assert.InDelta(t, 2, got, 1e-12)
	got, _ = SWC(SWCHopkins, 10, 0)
	assert.InDelta(t, 10*HopkinsMultiplier, got, 1e-12)
	got, _ = SWC(SWCIndividual, 10, 0)
	assert.InDelta(t, 5, got, 1e-12)
	got, _ = SWC(SWCCV, 10, 2)
	assert.InDelta(t, 3.92, got, 1e-12)

	_, err := SWC("median", 10, 0)
	assert.Error(t, err)
	_, err = SWC(SWCCohen, -1, 0)
	assert.True(t, errors.Is(err, ErrDegenerate))
}

func TestSWCFromValues(t *testing.T) {
	values := []float64{30, 32, 31, 33, 32}
	sd, _ := SD(values)
	got, err := SWCFromValues(SWCHopkins, values)
	require.NoError(t, err)
	assert.InDelta(t, HopkinsMultiplier*sd, got, 1e-12)

	te, _ := TypicalError(values[:4], values[1:])
	got, err = SWCFromValues(SWCCV, values)
	require.NoError(t, err)
	assert.InDelta(t, 1.96*te, got, 1e-12)

	_, err = SWCFromValues(SWCCohen, []float64{1})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestParseSWCMethod(t *testing.T) {
	m, err := ParseSWCMethod("hopkins")
	require.NoError(t, err)
	assert.Equal(t, SWCHopkins, m)
	_, err = ParseSWCMethod("bogus")
	assert.Error(t, err)
}

func TestErf(t *testing.T) {
	assert.InDelta(t, 0, Erf(0), 1e-6)
	assert.InDelta(t, 0.8427007929, Erf(1), 1e-6)
	assert.InDelta(t, -0.8427007929, Erf(-1), 1e-6)
	assert.InDelta(t, 0.9999779095, Erf(3), 1e-6)
	assert.InDelta(t, 0.5, NormalCDF(0), 1e-6)
	assert.InDelta(t, 0.9750021, NormalCDF(1.96), 1e-6)
}

func TestMBI_ProbabilitiesSumTo100(t *testing.T) {
	for _, effect := range []float64{-10, -2, -0.5, 0, 0.3, 1, 4, 25} {
		for _, se := range []float64{0, 0.1, 1, 5} {
			for _, hib := range []bool{true, false} {
				name := fmt.Sprintf("effect=%v/se=%v/higher=%v", effect, se, hib)
				r, err := MBI(effect, 1, se, hib)
				require.NoError(t, err, name)
				assert.InDelta(t, 100, r.Beneficial+r.Trivial+r.Harmful, 1e-6, name)
				for _, p := range []float64{r.Beneficial, r.Trivial, r.Harmful} {
					assert.GreaterOrEqual(t, p, 0.0, name)
					assert.LessOrEqual(t, p, 100.0, name)
				}
			}
		}
	}
}

func TestMBI_Labels(t *testing.T) {
	tests := []struct {
		name           string
		effect, swc    float64
		se             float64
		higherIsBetter bool
		want           string
		unclear        bool
	}{
		{"clear improvement", 3, 1, 0.5, true, "likely beneficial", false},
		{"clear harm", -3, 1, 0.5, true, "likely harmful", false},
		{"lower is better flips", -3, 1, 0.5, false, "likely beneficial", false},
		{"no change", 0, 1, 0.2, true, "likely trivial", false},
		{"wide uncertainty", 0, 1, 10, true, "unclear", true},
		{"borderline", 1.2, 1, 0.4, true, "possibly beneficial", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := MBI(tt.effect, tt.swc, tt.se, tt.higherIsBetter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Label)
			assert.Equal(t, tt.unclear, r.Unclear)
			assert.InDelta(t, tt.effect/tt.swc, r.Standardized, 1e-12)
		})
	}

	_, err := MBI(1, 0, 1, true)
	assert.True(t, errors.Is(err, ErrDegenerate))
}

func fvPoints(f0, v0 float64, vs ...float64) []FVPoint {
	slope := -f0 / v0
	out := make([]FVPoint, len(vs))
	for i, v := range vs {
		out[i] = FVPoint{Force: f0 + slope*v, Velocity: v}
	}
	return out
}

func TestForceVelocityProfile(t *testing.T) {
	tests := []struct {
		name   string
		f0, v0 float64
		want   Deficit
	}{
		{"balanced at reference", 2800, 3.5, DeficitNone},
		{"force deficit", 1600, 3.5, DeficitForce},
		{"velocity deficit", 2800, 1.75, DeficitVelocity},
		{"power deficit", 2400, 3.0, DeficitPower},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ForceVelocityProfile(fvPoints(tt.f0, tt.v0, 0.5, 1.0, 1.5, 2.0), 80, DefaultFVNorms)
			require.NoError(t, err)
			assert.InDelta(t, tt.f0, p.F0, 1e-6)
			assert.InDelta(t, tt.v0, p.V0, 1e-6)
			assert.InDelta(t, tt.f0*tt.v0/4, p.Pmax, 1e-3)
			assert.InDelta(t, 1, p.R2, 1e-9)
			assert.Equal(t, tt.want, p.Deficit)
			assert.NotEmpty(t, p.Description)
		})
	}
}

func TestForceVelocityProfile_NotComputable(t *testing.T) {
	_, err := ForceVelocityProfile(fvPoints(2800, 3.5, 0.5, 1.0), 80, DefaultFVNorms)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	rising := []FVPoint{{1000, 0.5}, {1100, 1.0}, {1200, 1.5}}
	_, err = ForceVelocityProfile(rising, 80, DefaultFVNorms)
	assert.True(t, errors.Is(err, ErrDegenerate))

	_, err = ForceVelocityProfile(fvPoints(2800, 3.5, 0.5, 1.0, 1.5), 0, DefaultFVNorms)
	assert.True(t, errors.Is(err, ErrDegenerate))
}

func TestLinearRegression(t *testing.T) {
	r, err := LinearRegression([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 2, r.Slope, 1e-12)
	assert.InDelta(t, 1, r.Intercept, 1e-12)
	assert.InDelta(t, 1, r.R2, 1e-12)
	assert.InDelta(t, 0, r.SlopeSE, 1e-9)

	_, err = LinearRegression([]float64{0, 1}, []float64{1, 3})
	assert.True(t, errors.Is(err, ErrInsufficientData))
	_, err = LinearRegression([]float64{2, 2, 2}, []float64{1, 3, 5})
	assert.True(t, errors.Is(err, ErrDegenerate))
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name           string
		values         []float64
		higherIsBetter bool
		want           TrendDirection
		significant    bool
	}{
		{"steady gains", []float64{30, 31, 32, 33, 34}, true, TrendImproving, true},
		{"rising time is worse", []float64{30, 31, 32, 33, 34}, false, TrendDeclining, true},
		{"noisy rise", []float64{30, 31.5, 31, 33, 32.5, 34, 35, 34.5}, true, TrendImproving, true},
		{"flat noise", []float64{10, 12, 9, 11, 10, 12, 9, 11}, true, TrendStable, false},
		{"constant", []float64{5, 5, 5, 5}, true, TrendStable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Trend(tt.values, tt.higherIsBetter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Direction)
			assert.Equal(t, tt.significant, tr.Significant)
			assert.Equal(t, len(tt.values)-2, tr.DF)
			assert.GreaterOrEqual(t, tr.P, 0.0)
			assert.LessOrEqual(t, tr.P, 1.0)
		})
	}

	_, err := Trend([]float64{1, 2}, true)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}
