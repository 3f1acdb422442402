package phase

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
)

// QualityBand is an ordinal rating of a phase or trial.
type QualityBand string

const (
	BandExcellent QualityBand = "excellent"
	BandGood      QualityBand = "good"
	BandFair      QualityBand = "fair"
	BandPoor      QualityBand = "poor"
)

// BandFor maps a 0-1 score to a band.
func BandFor(score float64) QualityBand {
	switch {
	case score >= 0.85:
		return BandExcellent
	case score >= 0.70:
		return BandGood
	case score >= 0.50:
		return BandFair
	}
	return BandPoor
}

const (
	durationWeight    = 0.6
	consistencyWeight = 0.4
)

// ExpectedDurationMs returns the plausible duration range of p for test.
func ExpectedDurationMs(p Phase, test classify.TestType) (lo, hi float64) {
	switch p {
	case QuietStanding:
		return 200, 5000
	case Unloading:
		return 100, 600
	case Braking:
		return 50, 400
	case Propulsion:
		if test == classify.IMTP {
			return 1000, 6000
		}
		return 100, 500
	case Flight:
		return 100, 1000
	case Landing:
		return 50, 1000
	}
	return 0, math.Inf(1)
}

// SegmentQuality blends duration appropriateness with force consistency.
// forces are the raw samples covered by s.
func SegmentQuality(s PhaseSegment, forces []float64, bodyWeightN float64, test classify.TestType) float64 {
	lo, hi := ExpectedDurationMs(s.Phase, test)
	var dur float64
	switch d := s.DurationMs; {
	case d <= 0:
		dur = 0
	case d < lo:
		dur = d / lo
	case d > hi:
		dur = hi / d
	default:
		dur = 1
	}
	return clamp(durationWeight*dur+consistencyWeight*consistency(s.Phase, forces, bodyWeightN), 0, 1)
}

// consistency is 1 - CV, except in flight where the mean is near zero and
// the SD is judged against the flight threshold instead.
func consistency(p Phase, forces []float64, bw float64) float64 {
	if len(forces) == 0 {
		return 0
	}
	var sum, sum2 float64
	for _, v := range forces {
		sum += v
		sum2 += v * v
	}
	n := float64(len(forces))
	mean := sum / n
	sd := math.Sqrt(math.Max(0, sum2/n-mean*mean))
	if p == Flight {
		if bw <= 0 {
			return 0
		}
		return clamp(1-sd/(0.1*bw), 0, 1)
	}
	if mean <= 0 {
		return 0
	}
	return clamp(1-sd/mean, 0, 1)
}

// Detection is the trial-level verdict on a segmentation.
type Detection struct {
	Confidence     float64     `json:"confidence"`
	Valid          bool        `json:"valid"`
	CoreFound      int         `json:"core_found"`
	DistinctPhases int         `json:"distinct_phases"`
	AvgQuality     float64     `json:"avg_quality"`
	Band           QualityBand `json:"band"`
}

// Assess blends core-phase completeness with average segment quality. A
// trial is valid when confidence exceeds 0.5 and at least three distinct
// phases were found.
func Assess(segs []PhaseSegment) Detection {
	var d Detection
	if len(segs) == 0 {
		d.Band = BandPoor
		return d
	}
	seen := map[Phase]bool{}
	var q float64
	for _, s := range segs {
		seen[s.Phase] = true
		q += s.Quality
	}
	d.DistinctPhases = len(seen)
	for _, p := range CorePhases() {
		if seen[p] {
			d.CoreFound++
		}
	}
	d.AvgQuality = q / float64(len(segs))
	completeness := float64(d.CoreFound) / float64(len(CorePhases()))
	d.Confidence = clamp(0.5*completeness+0.5*d.AvgQuality, 0, 1)
	d.Valid = d.Confidence > 0.5 && d.DistinctPhases >= 3
	d.Band = BandFor(d.Confidence)
	return d
}

// Find returns the first segment tagged p.
func Find(segs []PhaseSegment, p Phase) (PhaseSegment, bool) {
	for _, s := range segs {
		if s.Phase == p {
			return s, true
		}
	}
	return PhaseSegment{}, false
}

// TotalDurationMs sums the durations of all segments tagged p.
func TotalDurationMs(segs []PhaseSegment, p Phase) float64 {
	var total float64
	for _, s := range segs {
		if s.Phase == p {
			total += s.DurationMs
		}
	}
	return total
}
