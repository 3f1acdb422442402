package stats

import (
	"math"
)

// Erf approximates the error function (Abramowitz & Stegun 7.1.26,
// |error| < 1.5e-7).
func Erf(x float64) float64 {
	const (
		p  = 0.3275911
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
	)
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}
	t := 1 / (1 + p*x)
	y := 1 - ((((a5*t+a4)*t+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)
	return sign * y
}

// NormalCDF is Φ(z) for the standard normal.
func NormalCDF(z float64) float64 {
	return 0.5 * (1 + Erf(z/math.Sqrt2))
}

// Magnitude-based inference cut-points, in percent.
const (
	mbiLikely   = 75.0
	mbiPossibly = 25.0
	mbiUnclear  = 5.0
)

// MagnitudeInferenceResult holds the chances (percent, summing to 100) that
// the true effect is beneficial, trivial or harmful.
type MagnitudeInferenceResult struct {
	Effect       float64 `json:"effect"`
	SWC          float64 `json:"swc"`
	SE           float64 `json:"se"`
	Standardized float64 `json:"standardized"` // effect / SWC
	Beneficial   float64 `json:"beneficial_pct"`
	Trivial      float64 `json:"trivial_pct"`
	Harmful      float64 `json:"harmful_pct"`
	Label        string  `json:"label"`
	Unclear      bool    `json:"unclear"`
}

// MBI classifies an observed change against the smallest worthwhile change.
// se is the standard error of the effect; when it is not positive the SWC
// is used as the scale. For metrics where lower is better set
// higherIsBetter to false.
func MBI(effect, swc, se float64, higherIsBetter bool) (MagnitudeInferenceResult, error) {
	if swc <= 0 || math.IsNaN(swc) {
		return MagnitudeInferenceResult{}, degenerate("mbi", "smallest worthwhile change must be positive")
	}
	res := MagnitudeInferenceResult{Effect: effect, SWC: swc, SE: se, Standardized: effect / swc}

	e := effect
	if !higherIsBetter {
		e = -e
	}
	scale := se
	if scale <= 0 {
		scale = swc
	}
	ben := 1 - NormalCDF((swc-e)/scale)
	harm := NormalCDF((-swc - e) / scale)
	res.Beneficial = 100 * ben
	res.Harmful = 100 * harm
	res.Trivial = math.Max(0, 100-res.Beneficial-res.Harmful)

	res.Label, res.Unclear = mbiLabel(res.Beneficial, res.Trivial, res.Harmful)
	return res, nil
}

func mbiLabel(ben, triv, harm float64) (string, bool) {
	if ben > mbiUnclear && harm > mbiUnclear {
		return "unclear", true
	}
	name, p := "trivial", triv
	if ben > p {
		name, p = "beneficial", ben
	}
	if harm > p {
		name, p = "harmful", harm
	}
	switch {
	case p >= mbiLikely:
		return "likely " + name, false
	case p >= mbiPossibly:
		return "possibly " + name, false
	}
	return "unclear", true
}
