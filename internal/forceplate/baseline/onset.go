package baseline

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

// OnsetDetector flags the start of a movement: the total force must leave
// the baseline by more than the threshold and stay out for the confirmation
// window. A single return inside the threshold resets the timer.
type OnsetDetector struct {
	cfg      Config
	baseline float64

	timerStart *float64
	confirmed  bool
	onsetAt    float64
}

// NewOnsetDetector creates a detector around baselineN.
func NewOnsetDetector(cfg Config, baselineN float64) *OnsetDetector {
	return &OnsetDetector{cfg: cfg, baseline: baselineN}
}

// SetBaseline replaces the reference force without touching the timer.
func (o *OnsetDetector) SetBaseline(baselineN float64) { o.baseline = baselineN }

// Baseline returns the reference force.
func (o *OnsetDetector) Baseline() float64 { return o.baseline }

// Update feeds one sample. It returns true exactly once, on the sample that
// confirms onset.
func (o *OnsetDetector) Update(s samples.ForceSample) bool {
	if o.confirmed {
		return false
	}
	dev := math.Abs(s.Total - o.baseline)
	if dev <= o.cfg.OnsetThresholdN {
		o.timerStart = nil
		return false
	}
	if o.timerStart == nil {
		start := s.TimestampMs
		o.timerStart = &start
	}
	if s.TimestampMs-*o.timerStart >= o.cfg.OnsetConfirmMs {
		o.confirmed = true
		o.onsetAt = *o.timerStart
		monitoring.Logf("movement onset at %.0f ms (confirmed at %.0f ms)", o.onsetAt, s.TimestampMs)
		return true
	}
	return false
}

// Onset returns the timestamp at which the confirmed deviation began.
func (o *OnsetDetector) Onset() (float64, bool) { return o.onsetAt, o.confirmed }

// Pending reports whether a deviation is being timed but not yet confirmed.
func (o *OnsetDetector) Pending() bool { return o.timerStart != nil && !o.confirmed }

// Reset re-arms the detector for the next movement.
func (o *OnsetDetector) Reset() {
	o.timerStart = nil
	o.confirmed = false
	o.onsetAt = 0
}
