package realtime

import (
	"errors"
	"fmt"

	"github.com/banshee-data/forceplate.report/internal/forceplate/baseline"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

// ErrNoBodyWeight is returned by Analyse when the trial never holds still
// long enough to measure body weight and none was supplied.
var ErrNoBodyWeight = errors.New("body weight not detected")

// AnalyseOptions configures a batch analysis. Zero values mean: detect
// body weight, classify the test, and use trained/general thresholds.
type AnalyseOptions struct {
	BodyWeightN float64
	Test        classify.TestType
	Athlete     phase.Athlete
	Prior       []phase.TrialOutcome
	Baseline    baseline.Config
}

// DetectBodyWeight runs the stability detector over ss and returns the
// first body weight it reports.
func DetectBodyWeight(ss []samples.ForceSample, cfg baseline.Config) (float64, bool) {
	d := baseline.NewStabilityDetector(cfg)
	for _, s := range ss {
		for _, ev := range d.Update(s) {
			if ev.Kind == baseline.EventBodyWeightDetected {
				return ev.BodyWeightN, true
			}
		}
	}
	return 0, false
}

// Analyse runs the full pipeline over a completed recording: body weight,
// classification, adaptive thresholds, segmentation and metrics.
func Analyse(t *samples.Trial, opts AnalyseOptions) (TrialResult, error) {
	if err := t.Validate(); err != nil {
		return TrialResult{}, fmt.Errorf("invalid trial: %w", err)
	}
	if t.Len() < 2 {
		return TrialResult{}, fmt.Errorf("invalid trial: %d samples", t.Len())
	}
	bw := opts.BodyWeightN
	if bw <= 0 {
		cfg := opts.Baseline
		if cfg == (baseline.Config{}) {
			cfg = baseline.DefaultConfig()
		}
		var ok bool
		if bw, ok = DetectBodyWeight(t.Samples(), cfg); !ok {
			return TrialResult{}, ErrNoBodyWeight
		}
	}
	athlete := opts.Athlete
	if athlete.Level == "" {
		athlete.Level = phase.LevelTrained
	}
	if athlete.Sport == "" {
		athlete.Sport = phase.SportGeneral
	}
	return analyse(t, bw, opts.Test, athlete, opts.Prior), nil
}

// analyse classifies, segments and measures t. A non-empty fixed test
// overrides the classifier.
func analyse(t *samples.Trial, bw float64, fixed classify.TestType, athlete phase.Athlete, prior []phase.TrialOutcome) TrialResult {
	res := TrialResult{
		ID:          t.ID,
		BodyWeightN: bw,
		Trial:       t,
	}
	cls, err := classify.Classify(t.Totals(), bw, t.SampleRate)
	if err != nil {
		monitoring.Debugf("classify trial %s: %v", t.ID, err)
	}
	res.Classification = cls
	res.Test = cls.Test
	if fixed != "" && fixed != classify.Undetected {
		res.Test = fixed
	}

	th := phase.Adaptive(res.Test, athlete, prior)
	res.Segments = phase.Segment(t, bw, res.Test, th)
	res.Detection = phase.Assess(res.Segments)
	res.Metrics = metrics.Compute(metrics.Input{
		Trial:       t,
		BodyWeightN: bw,
		Test:        res.Test,
		Segments:    res.Segments,
	})
	return res
}
