package realtime

import (
	"fmt"

	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
)

var phaseCues = map[phase.Phase]string{
	phase.QuietStanding: "Ready. Start the movement when you like",
	phase.Unloading:     "Sink into the dip",
	phase.Braking:       "Brake and load",
	phase.Propulsion:    "Drive up hard",
	phase.Flight:        "In the air",
	phase.Landing:       "Land soft and hold",
}

// feedbackFor picks the most urgent message: session end, signal faults,
// setup state, then the cue for the current phase.
func feedbackFor(status Status, p phase.Phase, stable bool, q QualityAssessment) (Severity, string) {
	switch status {
	case StatusClosed:
		return SeverityInfo, "Session ended"
	case StatusFailed:
		return SeverityCritical, "Session stopped: sample source failed"
	}

	switch {
	case q.Has(FlagNegativeForce):
		return SeverityCritical, "Negative force reading, re-zero the plate"
	case q.Has(FlagOutOfRange):
		return SeverityCritical, "Force outside the plate's range"
	case q.Has(FlagFlatSignal):
		return SeverityWarning, "Signal looks flat, check the plate connection"
	case q.Has(FlagNoisy):
		return SeverityWarning, "Noisy signal, keep still and check cabling"
	case q.Has(FlagAsymmetry):
		return SeverityWarning, fmt.Sprintf("Uneven loading (%.0f%% asymmetry), balance both feet", 100*q.Asymmetry)
	}

	if status == StatusWaiting {
		if stable {
			return SeverityInfo, "Hold still, measuring body weight"
		}
		return SeverityInfo, "Stand still on the plate"
	}
	if cue, ok := phaseCues[p]; ok {
		return SeverityInfo, cue
	}
	return SeverityInfo, p.Label()
}
