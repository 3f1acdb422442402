package metrics

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// COPStats describes postural sway from the combined centre of pressure.
// Distances are in mm, velocities in mm/s. Area is the bounding box
// (range ML × range AP), not a convex hull.
type COPStats struct {
	RangeML    float64 `json:"range_ml_mm"`
	RangeAP    float64 `json:"range_ap_mm"`
	PathLength float64 `json:"path_length_mm"`
	Velocity   float64 `json:"velocity_mm_s"`
	VelocityML float64 `json:"velocity_ml_mm_s"`
	VelocityAP float64 `json:"velocity_ap_mm_s"`
	Area       float64 `json:"area_mm2"`
	Samples    int     `json:"samples"`
}

// COP computes sway statistics over the samples that carry COP data.
func COP(ss []samples.ForceSample, rate float64) (COPStats, error) {
	if rate <= 0 {
		return COPStats{}, notComputable("sample rate must be positive")
	}
	var pts []samples.Point
	for _, s := range ss {
		if p, ok := s.CombinedCOP(); ok {
			pts = append(pts, p)
		}
	}
	if len(pts) < 2 {
		return COPStats{}, notComputable("need at least 2 centre-of-pressure samples, have %d", len(pts))
	}

	st := COPStats{Samples: len(pts)}
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	var pathML, pathAP float64
	for i := 1; i < len(pts); i++ {
		dx := pts[i].X - pts[i-1].X
		dy := pts[i].Y - pts[i-1].Y
		st.PathLength += math.Hypot(dx, dy)
		pathML += math.Abs(dx)
		pathAP += math.Abs(dy)
		minX, maxX = math.Min(minX, pts[i].X), math.Max(maxX, pts[i].X)
		minY, maxY = math.Min(minY, pts[i].Y), math.Max(maxY, pts[i].Y)
	}
	st.RangeML = maxX - minX
	st.RangeAP = maxY - minY
	st.Area = st.RangeML * st.RangeAP

	duration := float64(len(pts)-1) / rate
	st.Velocity = st.PathLength / duration
	st.VelocityML = pathML / duration
	st.VelocityAP = pathAP / duration
	return st, nil
}

// MeanAsymmetry averages the per-sample asymmetry index over samples
// carrying at least minTotalN.
func MeanAsymmetry(ss []samples.ForceSample, minTotalN float64) (float64, error) {
	var sum float64
	n := 0
	for _, s := range ss {
		if s.Total >= minTotalN && s.Total > 0 {
			sum += s.Asymmetry
			n++
		}
	}
	if n == 0 {
		return 0, notComputable("no loaded samples")
	}
	return sum / float64(n), nil
}

// PeakForceAsymmetry compares the left and right peak forces.
func PeakForceAsymmetry(ss []samples.ForceSample) (float64, error) {
	var pl, pr float64
	for _, s := range ss {
		pl = math.Max(pl, s.Left)
		pr = math.Max(pr, s.Right)
	}
	return ratioAsymmetry(pl, pr)
}

// ImpulseAsymmetry compares left and right impulse.
func ImpulseAsymmetry(ss []samples.ForceSample, rate float64) (float64, error) {
	return ratioAsymmetry(Impulse(samples.Lefts(ss), rate), Impulse(samples.Rights(ss), rate))
}

func ratioAsymmetry(l, r float64) (float64, error) {
	if l+r <= 0 {
		return 0, notComputable("no force on either side")
	}
	return math.Min(1, math.Abs(l-r)/(l+r)), nil
}
