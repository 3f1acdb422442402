package stats

import "fmt"

// SWCMethod selects how the smallest worthwhile change is derived.
type SWCMethod string

const (
	SWCCohen      SWCMethod = "cohen"      // 0.2 × between-subject SD
	SWCHopkins    SWCMethod = "hopkins"    // HopkinsMultiplier × SD
	SWCCV         SWCMethod = "cv"         // typical error × 1.96
	SWCIndividual SWCMethod = "individual" // 0.5 × SD, for individual responses
)

// HopkinsMultiplier is the fraction of SD used by the Hopkins method.
// Hopkins' later guidance settled on 0.2 (earlier material used 0.3).
const HopkinsMultiplier = 0.2

// ParseSWCMethod validates a method name.
func ParseSWCMethod(s string) (SWCMethod, error) {
	switch m := SWCMethod(s); m {
	case SWCCohen, SWCHopkins, SWCCV, SWCIndividual:
		return m, nil
	}
	return "", fmt.Errorf("unknown SWC method %q (valid: cohen, hopkins, cv, individual)", s)
}

// SWC returns the smallest worthwhile change. sd is used by the SD-based
// methods and typicalError by the CV method.
func SWC(method SWCMethod, sd, typicalError float64) (float64, error) {
	switch method {
	case SWCCohen:
		return nonNegative(0.2 * sd)
	case SWCHopkins:
		return nonNegative(HopkinsMultiplier * sd)
	case SWCIndividual:
		return nonNegative(0.5 * sd)
	case SWCCV:
		return nonNegative(z95 * typicalError)
	}
	return 0, fmt.Errorf("unknown SWC method %q", method)
}

// SWCFromValues derives the SD (and, for the CV method, the typical error
// between consecutive observations) from a series and applies method.
func SWCFromValues(method SWCMethod, values []float64) (float64, error) {
	sd, err := SD(values)
	if err != nil {
		return 0, fmt.Errorf("swc: %w", err)
	}
	var te float64
	if method == SWCCV {
		if te, err = TypicalError(values[:len(values)-1], values[1:]); err != nil {
			return 0, fmt.Errorf("swc: %w", err)
		}
	}
	return SWC(method, sd, te)
}

func nonNegative(v float64) (float64, error) {
	if v < 0 {
		return 0, degenerate("swc", "negative spread")
	}
	return v, nil
}
