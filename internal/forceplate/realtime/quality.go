package realtime

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/stats"
)

const (
	qualityBase = 0.9

	penaltyOutOfRange = 0.30
	penaltyNegative   = 0.30
	penaltyAsymmetry  = 0.20
	penaltyNoisy      = 0.20
	penaltyFlat       = 0.15

	bonusMoved     = 0.05
	bonusPropulsed = 0.05

	// Samples lighter than this are left out of the asymmetry mean.
	asymmetryMinTotalN = 50
)

// AssessQuality scores a window of raw samples. moved and propulsed record
// whether the subject has begun the movement and reached propulsion or
// flight, each worth a small bonus.
func AssessQuality(window []samples.ForceSample, limits QualityLimits, moved, propulsed bool) QualityAssessment {
	q := QualityAssessment{Samples: len(window)}
	if len(window) == 0 {
		return q
	}
	score := qualityBase
	raise := func(f QualityFlag, penalty float64) {
		q.Flags = append(q.Flags, f)
		score -= penalty
	}

	var outOfRange, negative bool
	var diff float64
	for i, s := range window {
		if s.Total < limits.MinForceN || s.Total > limits.MaxForceN {
			outOfRange = true
		}
		if s.Left < -limits.NegativeToleranceN || s.Right < -limits.NegativeToleranceN {
			negative = true
		}
		if i > 0 {
			diff += math.Abs(s.Total - window[i-1].Total)
		}
	}
	if len(window) > 1 {
		q.NoiseN = diff / float64(len(window)-1)
	}
	if sd, err := stats.SD(samples.Totals(window)); err == nil {
		q.SDN = sd
	}
	if a, err := metrics.MeanAsymmetry(window, asymmetryMinTotalN); err == nil {
		q.Asymmetry = a
	}

	if outOfRange {
		raise(FlagOutOfRange, penaltyOutOfRange)
	}
	if negative {
		raise(FlagNegativeForce, penaltyNegative)
	}
	if q.Asymmetry > limits.AsymmetryCeiling {
		raise(FlagAsymmetry, penaltyAsymmetry)
	}
	if q.NoiseN > limits.NoiseCeilingN {
		raise(FlagNoisy, penaltyNoisy)
	}
	if len(window) > 1 && q.SDN < limits.FlatSignalSDN {
		raise(FlagFlatSignal, penaltyFlat)
	}

	if moved {
		score += bonusMoved
	}
	if propulsed {
		score += bonusPropulsed
	}
	q.Score = math.Max(0, math.Min(1, score))
	return q
}
