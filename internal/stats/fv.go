package stats

import (
	"fmt"
	"math"
)

// FVPoint is one loaded condition: mean force (N) and mean velocity (m/s).
type FVPoint struct {
	Force    float64 `json:"force_n"`
	Velocity float64 `json:"velocity_m_s"`
}

// FVNorms are the reference values that F0 (per kg) and V0 are normalised
// against.
type FVNorms struct {
	F0PerKg float64 `json:"f0_n_kg"`
	V0      float64 `json:"v0_m_s"`
}

// DefaultFVNorms are typical values for trained jumpers.
var DefaultFVNorms = FVNorms{F0PerKg: 35, V0: 3.5}

// Deficit names the limiting side of a force-velocity profile.
type Deficit string

const (
	DeficitNone     Deficit = "none"
	DeficitForce    Deficit = "force"
	DeficitVelocity Deficit = "velocity"
	DeficitPower    Deficit = "power"
)

// FVImbalanceThreshold is the normalised F0/V0 gap that counts as a deficit.
const FVImbalanceThreshold = 0.40

// FVProfile is a Samozino force-velocity profile.
type FVProfile struct {
	F0          float64 `json:"f0_n"`
	V0          float64 `json:"v0_m_s"`
	Pmax        float64 `json:"pmax_w"`
	Slope       float64 `json:"slope"`
	R2          float64 `json:"r2"`
	F0PerKg     float64 `json:"f0_n_kg"`
	NormF0      float64 `json:"norm_f0"`
	NormV0      float64 `json:"norm_v0"`
	Imbalance   float64 `json:"imbalance"`
	Deficit     Deficit `json:"deficit"`
	Conditions  int     `json:"conditions"`
	BodyMassKg  float64 `json:"body_mass_kg"`
	Description string  `json:"description"`
}

// ForceVelocityProfile regresses force on velocity across at least three
// loaded conditions. F0 is the force intercept, V0 = -F0/slope and
// Pmax = F0·V0/4.
func ForceVelocityProfile(points []FVPoint, bodyMassKg float64, norms FVNorms) (FVProfile, error) {
	if err := need("fv profile", len(points), 3); err != nil {
		return FVProfile{}, err
	}
	if bodyMassKg <= 0 || norms.F0PerKg <= 0 || norms.V0 <= 0 {
		return FVProfile{}, degenerate("fv profile", "body mass and norms must be positive")
	}
	v := make([]float64, len(points))
	f := make([]float64, len(points))
	for i, p := range points {
		v[i], f[i] = p.Velocity, p.Force
	}
	reg, err := LinearRegression(v, f)
	if err != nil {
		return FVProfile{}, fmt.Errorf("fv profile: %w", err)
	}
	if reg.Slope >= 0 {
		return FVProfile{}, degenerate("fv profile", "force must fall as velocity rises")
	}

	p := FVProfile{
		F0:         reg.Intercept,
		Slope:      reg.Slope,
		R2:         reg.R2,
		Conditions: len(points),
		BodyMassKg: bodyMassKg,
	}
	p.V0 = -p.F0 / p.Slope
	p.Pmax = p.F0 * p.V0 / 4
	p.F0PerKg = p.F0 / bodyMassKg
	p.NormF0 = p.F0PerKg / norms.F0PerKg
	p.NormV0 = p.V0 / norms.V0
	if hi := math.Max(p.NormF0, p.NormV0); hi > 0 {
		p.Imbalance = math.Abs(p.NormF0-p.NormV0) / hi
	}

	switch {
	case p.Imbalance > FVImbalanceThreshold && p.NormF0 < p.NormV0:
		p.Deficit = DeficitForce
		p.Description = "force capacity lags velocity capacity; prioritise heavy strength work"
	case p.Imbalance > FVImbalanceThreshold:
		p.Deficit = DeficitVelocity
		p.Description = "velocity capacity lags force capacity; prioritise light, fast loading"
	case p.NormF0 < 1 && p.NormV0 < 1:
		p.Deficit = DeficitPower
		p.Description = "balanced profile below reference on both ends; develop maximal power"
	default:
		p.Deficit = DeficitNone
		p.Description = "balanced profile at or above reference"
	}
	return p, nil
}
