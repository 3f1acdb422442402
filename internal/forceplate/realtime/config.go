// Package realtime drives one live force-plate session: it smooths incoming
// samples, tracks stability, onset and phase, and publishes periodic
// snapshots, feedback and quality assessments to a Sink.
package realtime

import (
	"time"

	"github.com/banshee-data/forceplate.report/internal/forceplate/baseline"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
)

// QualityLimits bound what counts as a plausible signal.
type QualityLimits struct {
	MinForceN          float64 // total force below this is out of range
	MaxForceN          float64 // total force above this is out of range
	NegativeToleranceN float64 // per-platform readings below -tolerance are flagged
	AsymmetryCeiling   float64 // mean asymmetry index above this is flagged
	NoiseCeilingN      float64 // mean |Δtotal| between consecutive samples
	FlatSignalSDN      float64 // SD below this looks like a disconnected sensor
	WindowMs           float64 // recent window the checks run over
}

// DefaultQualityLimits returns the production limits.
func DefaultQualityLimits() QualityLimits {
	return QualityLimits{
		MinForceN:          -50,
		MaxForceN:          10000,
		NegativeToleranceN: 5,
		AsymmetryCeiling:   0.15,
		NoiseCeilingN:      50,
		FlatSignalSDN:      0.05,
		WindowMs:           500,
	}
}

// Config parameterises a Session. Zero durations and counts are replaced
// by the defaults in NewSession.
type Config struct {
	SampleRate       float64 // nominal Hz
	BufferSeconds    float64 // raw ring capacity
	SmoothingWindow  int     // trailing average over this many samples
	AnalysisInterval time.Duration
	FeedbackInterval time.Duration
	AnalysisWindowMs float64 // recent window re-segmented on each analysis tick
	PreOnsetMs       float64 // quiet lead-in copied into each trial
	MaxTrialMs       float64 // a trial longer than this is closed

	Baseline baseline.Config
	Quality  QualityLimits

	// BodyWeightN skips stability detection when positive.
	BodyWeightN float64

	// Test fixes the protocol; empty means classify each trial.
	Test    classify.TestType
	Athlete phase.Athlete
}

// DefaultConfig returns the settings for a 1 kHz plate.
func DefaultConfig() Config {
	return Config{
		SampleRate:       1000,
		BufferSeconds:    10,
		SmoothingWindow:  5,
		AnalysisInterval: 200 * time.Millisecond,
		FeedbackInterval: 100 * time.Millisecond,
		AnalysisWindowMs: 3000,
		PreOnsetMs:       1000,
		MaxTrialMs:       10000,
		Baseline:         baseline.DefaultConfig(),
		Quality:          DefaultQualityLimits(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.BufferSeconds <= 0 {
		c.BufferSeconds = d.BufferSeconds
	}
	if c.SmoothingWindow <= 0 {
		c.SmoothingWindow = d.SmoothingWindow
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = d.AnalysisInterval
	}
	if c.FeedbackInterval <= 0 {
		c.FeedbackInterval = d.FeedbackInterval
	}
	if c.AnalysisWindowMs <= 0 {
		c.AnalysisWindowMs = d.AnalysisWindowMs
	}
	if c.PreOnsetMs < 0 {
		c.PreOnsetMs = 0
	}
	if c.MaxTrialMs <= 0 {
		c.MaxTrialMs = d.MaxTrialMs
	}
	if c.Baseline == (baseline.Config{}) {
		c.Baseline = d.Baseline
	}
	if c.Quality == (QualityLimits{}) {
		c.Quality = d.Quality
	}
	return c
}
