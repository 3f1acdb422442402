// Package units provides shared constants and conversions for force, mass and
// height units used when presenting metrics.
package units

// Standard gravity (m/s²) used for every weight/mass conversion in the engine.
const Gravity = 9.81

// Force unit constants
const (
	Newton = "n"
	KGF    = "kgf"
	LBF    = "lbf"
)

// Height unit constants
const (
	CM   = "cm"
	Inch = "in"
)

// ValidForceUnits contains all valid force unit values
var ValidForceUnits = []string{Newton, KGF, LBF}

// ValidHeightUnits contains all valid height unit values
var ValidHeightUnits = []string{CM, Inch}

// IsValidForce checks if the given unit is a known force unit
func IsValidForce(unit string) bool {
	for _, u := range ValidForceUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// IsValidHeight checks if the given unit is a known height unit
func IsValidHeight(unit string) bool {
	for _, u := range ValidHeightUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid force units for error messages
func GetValidUnitsString() string {
	return "n, kgf, lbf"
}

// ConvertForce converts a force in Newtons to the target units.
// All engine computations are in Newtons.
func ConvertForce(newtons float64, targetUnits string) float64 {
	switch targetUnits {
	case KGF:
		return newtons / Gravity
	case LBF:
		return newtons * 0.224808943
	default:
		return newtons
	}
}

// ConvertHeight converts a height in centimetres to the target units.
func ConvertHeight(cm float64, targetUnits string) float64 {
	switch targetUnits {
	case Inch:
		return cm / 2.54
	default:
		return cm
	}
}

// MassKg returns the body mass for a body weight in Newtons. Non-positive
// weights map to 0 so callers can treat the mass as unavailable.
func MassKg(bodyWeightN float64) float64 {
	if bodyWeightN <= 0 {
		return 0
	}
	return bodyWeightN / Gravity
}

// WeightN returns the body weight in Newtons for a mass in kilograms.
func WeightN(massKg float64) float64 {
	return massKg * Gravity
}
