package metrics

import (
	"maps"
	"math"
	"slices"
)

// Metric names.
const (
	JumpHeight           = "jump_height_cm"
	JumpHeightFlight     = "jump_height_flight_cm"
	TakeoffVelocityMS    = "takeoff_velocity_m_s"
	FlightTime           = "flight_time_ms"
	PeakForce            = "peak_force_n"
	RelativePeakForce    = "relative_peak_force"
	TotalImpulse         = "impulse_ns"
	NetImpulseToTakeoff  = "net_impulse_ns"
	PeakRFD50            = "peak_rfd_n_s"
	PeakPower            = "peak_power_w"
	MeanPower            = "mean_power_w"
	RelativePeakPower    = "relative_peak_power_w_kg"
	ContactTime          = "contact_time_ms"
	ReactiveStrength     = "rsi"
	ReactiveStrengthMod  = "rsi_modified"
	TimeToTakeoff        = "time_to_takeoff_ms"
	LandingPeakForce     = "landing_peak_force_n"
	LandingRFD           = "landing_rfd_n_s"
	AsymmetryMean        = "asymmetry_mean"
	AsymmetryPeakForce   = "asymmetry_peak_force"
	AsymmetryImpulse     = "asymmetry_impulse"
	COPRangeML           = "cop_range_ml_mm"
	COPRangeAP           = "cop_range_ap_mm"
	COPPathLength        = "cop_path_mm"
	COPVelocity          = "cop_velocity_mm_s"
	COPVelocityML        = "cop_velocity_ml_mm_s"
	COPVelocityAP        = "cop_velocity_ap_mm_s"
	COPArea              = "cop_area_mm2"
	EccentricDuration    = "eccentric_duration_ms"
	ConcentricDuration   = "concentric_duration_ms"
	phaseDurationSuffix  = "_duration_ms"
)

// PhaseDuration names the duration metric for a phase tag.
func PhaseDuration(phase string) string { return phase + phaseDurationSuffix }

// MetricSet maps metric names to values for one trial. Metrics whose
// preconditions failed are listed in Unavailable with the reason.
type MetricSet struct {
	Values      map[string]float64 `json:"values"`
	Unavailable map[string]string  `json:"unavailable,omitempty"`
}

// NewMetricSet returns an empty set.
func NewMetricSet() MetricSet {
	return MetricSet{Values: map[string]float64{}, Unavailable: map[string]string{}}
}

// Get returns a computed value.
func (m MetricSet) Get(name string) (float64, bool) {
	v, ok := m.Values[name]
	return v, ok
}

// Names returns the computed metric names, sorted.
func (m MetricSet) Names() []string {
	return slices.Sorted(maps.Keys(m.Values))
}

// record stores v, or the failure reason when err is non-nil.
func (m MetricSet) record(name string, v float64, err error) {
	if err != nil {
		delete(m.Values, name)
		m.Unavailable[name] = err.Error()
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		m.fail(name, "result is not finite")
		return
	}
	delete(m.Unavailable, name)
	m.Values[name] = v
}

// set returns a recorder for name, so a (value, error) call can be passed
// straight through.
func (m MetricSet) set(name string) func(float64, error) {
	return func(v float64, err error) { m.record(name, v, err) }
}

func (m MetricSet) fail(name, reason string) {
	delete(m.Values, name)
	m.Unavailable[name] = ErrNotComputable.Error() + ": " + reason
}

// lowerIsBetter lists metrics where a decrease is an improvement.
var lowerIsBetter = map[string]bool{
	ContactTime:        true,
	TimeToTakeoff:      true,
	LandingPeakForce:   true,
	LandingRFD:         true,
	AsymmetryMean:      true,
	AsymmetryPeakForce: true,
	AsymmetryImpulse:   true,
	COPRangeML:         true,
	COPRangeAP:         true,
	COPPathLength:      true,
	COPVelocity:        true,
	COPVelocityML:      true,
	COPVelocityAP:      true,
	COPArea:            true,
}

// HigherIsBetter reports the direction of improvement for a metric.
func HigherIsBetter(name string) bool { return !lowerIsBetter[name] }
