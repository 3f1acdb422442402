// Package classify recognises which test protocol a movement window belongs
// to by scoring its features against a fixed signature table.
package classify

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInsufficientSamples is returned when the movement window is too short
// to extract features from.
var ErrInsufficientSamples = errors.New("insufficient samples for classification")

// TestType identifies a recognised test protocol.
type TestType string

const (
	// CMJ is a countermovement jump
	CMJ TestType = "cmj"
	// SJ is a squat jump, started from a held squat
	SJ TestType = "sj"
	// DJ is a drop jump, started by stepping off a box
	DJ TestType = "dj"
	// IMTP is an isometric mid-thigh pull
	IMTP TestType = "imtp"
	// Undetected means no signature reached the detection threshold
	Undetected TestType = "undetected"
)

// Classification thresholds
const (
	// MinWindowSamples is the smallest window ExtractFeatures accepts
	MinWindowSamples = 1000

	// DetectionThreshold must be strictly exceeded for a detection
	DetectionThreshold = 0.70

	// Force levels as multiples of body weight
	FlightLevel     = 0.10
	ContactLevel    = 0.50
	UnloadingLevel  = 0.90
	BrakingLevel    = 1.10
	MinUnloadingMs  = 50.0
	RFDWindowMs     = 50.0
	depthPenalty    = 40.0 // points lost per unit of unloading-depth mismatch
	peakDecayPerBW  = 30.0 // points lost per BW outside the expected range
	flightBonusPts  = 10.0
	unloadingPts    = 20.0
	flightPts       = 30.0
	countermovePts  = 20.0
	peakRangePts    = 30.0
	maxRubricPoints = 100.0
)

// TestTypes lists the recognised protocols in signature order.
func TestTypes() []TestType { return []TestType{CMJ, SJ, DJ, IMTP} }

// ParseTestType accepts the short codes used on the command line. An empty
// string or "auto" maps to Undetected.
func ParseTestType(s string) (TestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", string(Undetected):
		return Undetected, nil
	case string(CMJ), "countermovement":
		return CMJ, nil
	case string(SJ), "squat":
		return SJ, nil
	case string(DJ), "drop":
		return DJ, nil
	case string(IMTP), "pull":
		return IMTP, nil
	}
	return Undetected, fmt.Errorf("unknown test type %q (valid: cmj, sj, dj, imtp, auto)", s)
}

// String returns a human-readable name.
func (t TestType) String() string {
	switch t {
	case CMJ:
		return "countermovement jump"
	case SJ:
		return "squat jump"
	case DJ:
		return "drop jump"
	case IMTP:
		return "isometric mid-thigh pull"
	}
	return "undetected"
}

// HasFlight reports whether the protocol leaves the plate.
func (t TestType) HasFlight() bool {
	return t == CMJ || t == SJ || t == DJ
}

// TestSignature is the qualitative template for one protocol.
type TestSignature struct {
	Test                   TestType
	HasUnloading           bool
	ExpectedUnloadingDepth float64 // fraction of body weight
	HasFlight              bool
	MinFlightMs            float64
	HasCountermovement     bool
	PeakMin                float64 // relative peak force, multiples of BW
	PeakMax                float64
}

// Signatures is the reference table. Order matters: it breaks ties.
var Signatures = []TestSignature{
	{Test: CMJ, HasUnloading: true, ExpectedUnloadingDepth: 0.3, HasFlight: true, MinFlightMs: 100, HasCountermovement: true, PeakMin: 1.8, PeakMax: 3.5},
	{Test: SJ, HasFlight: true, MinFlightMs: 100, PeakMin: 1.8, PeakMax: 3.0},
	{Test: DJ, HasFlight: true, MinFlightMs: 100, PeakMin: 2.5, PeakMax: 6.0},
	{Test: IMTP, PeakMin: 1.5, PeakMax: 4.0},
}

// SignatureFor returns the signature of t.
func SignatureFor(t TestType) (TestSignature, bool) {
	for _, s := range Signatures {
		if s.Test == t {
			return s, true
		}
	}
	return TestSignature{}, false
}

// clampConfidence clamps a confidence value to the range [min, max].
func clampConfidence(value, min, max float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// Score rates how well features match one signature, in [0,1].
func (s TestSignature) Score(f MovementFeatures) float64 {
	var pts float64

	switch {
	case s.HasUnloading && f.HasUnloading:
		pts += unloadingPts - math.Min(unloadingPts, math.Abs(f.UnloadingDepth-s.ExpectedUnloadingDepth)*depthPenalty)
	case s.HasUnloading == f.HasUnloading:
		pts += unloadingPts
	}

	if s.HasFlight == f.HasFlight() {
		pts += flightPts
		if s.HasFlight && f.FlightMs >= s.MinFlightMs {
			pts += flightBonusPts
		}
	}

	if s.HasCountermovement == f.HasCountermovement {
		pts += countermovePts
	}

	rel := f.RelativePeakForce
	switch {
	case rel >= s.PeakMin && rel <= s.PeakMax:
		pts += peakRangePts
	case rel < s.PeakMin:
		pts += math.Max(0, peakRangePts-(s.PeakMin-rel)*peakDecayPerBW)
	default:
		pts += math.Max(0, peakRangePts-(rel-s.PeakMax)*peakDecayPerBW)
	}

	return clampConfidence(pts/maxRubricPoints, 0, 1)
}

// SignatureScore is one row of a classification.
type SignatureScore struct {
	Test       TestType `json:"test"`
	Confidence float64  `json:"confidence"`
}

// Result holds the outcome of classifying one movement window.
type Result struct {
	Test       TestType         `json:"test"`
	Confidence float64          `json:"confidence"`
	Detected   bool             `json:"detected"`
	Scores     []SignatureScore `json:"scores"`
	Features   MovementFeatures `json:"features"`
}

// Classify extracts features from totals and picks the best signature.
// When the best score does not exceed DetectionThreshold the result is
// Undetected and the caller should keep collecting data.
func Classify(totals []float64, bodyWeightN, sampleRate float64) (Result, error) {
	f, err := ExtractFeatures(totals, bodyWeightN, sampleRate)
	if err != nil {
		return Result{Test: Undetected}, err
	}
	return ClassifyFeatures(f), nil
}

// ClassifyFeatures scores pre-extracted features.
func ClassifyFeatures(f MovementFeatures) Result {
	res := Result{Test: Undetected, Features: f}
	best := -1.0
	var bestType TestType
	for _, sig := range Signatures {
		score := sig.Score(f)
		res.Scores = append(res.Scores, SignatureScore{Test: sig.Test, Confidence: score})
		// Strictly greater keeps the first signature on ties.
		if score > best {
			best = score
			bestType = sig.Test
		}
	}
	res.Confidence = best
	if best > DetectionThreshold {
		res.Test = bestType
		res.Detected = true
	}
	return res
}
