package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/forceplate.report/internal/forceplate/baseline"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/stats"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional: the Get* methods fall back to the built-in
// defaults for anything the file leaves out.
type TuningConfig struct {
	// Baseline detection
	MinLoadN              *float64 `json:"min_load_n,omitempty"`
	StabilityWindowMs     *float64 `json:"stability_window_ms,omitempty"`
	StabilitySDThresholdN *float64 `json:"stability_sd_threshold_n,omitempty"`
	StabilityConfirmMs    *float64 `json:"stability_confirm_ms,omitempty"`
	BodyWeightWindowMs    *float64 `json:"body_weight_window_ms,omitempty"`
	OnsetThresholdN       *float64 `json:"onset_threshold_n,omitempty"`
	OnsetConfirmMs        *float64 `json:"onset_confirm_ms,omitempty"`

	// Live session
	SampleRateHz     *float64 `json:"sample_rate_hz,omitempty"`
	BufferSeconds    *float64 `json:"buffer_seconds,omitempty"`
	SmoothingWindow  *int     `json:"smoothing_window,omitempty"`
	AnalysisInterval *string  `json:"analysis_interval,omitempty"` // duration string like "200ms"
	FeedbackInterval *string  `json:"feedback_interval,omitempty"` // duration string like "100ms"
	AnalysisWindowMs *float64 `json:"analysis_window_ms,omitempty"`
	PreOnsetMs       *float64 `json:"pre_onset_ms,omitempty"`
	MaxTrialMs       *float64 `json:"max_trial_ms,omitempty"`

	// Signal quality ceilings
	MinForceN          *float64 `json:"min_force_n,omitempty"`
	MaxForceN          *float64 `json:"max_force_n,omitempty"`
	NegativeToleranceN *float64 `json:"negative_tolerance_n,omitempty"`
	AsymmetryCeiling   *float64 `json:"asymmetry_ceiling,omitempty"`
	NoiseCeilingN      *float64 `json:"noise_ceiling_n,omitempty"`
	FlatSignalSDN      *float64 `json:"flat_signal_sd_n,omitempty"`
	QualityWindowMs    *float64 `json:"quality_window_ms,omitempty"`

	// Protocol and athlete (optional)
	TestType     *string `json:"test_type,omitempty"` // cmj, sj, dj, imtp or auto
	AthleteAge   *int    `json:"athlete_age,omitempty"`
	AthleteLevel *string `json:"athlete_level,omitempty"`
	AthleteSport *string `json:"athlete_sport,omitempty"`

	// Analytics
	SWCMethod *string `json:"swc_method,omitempty"`

	// Outputs
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix,omitempty"`
	MQTTClientID    *string `json:"mqtt_client_id,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/forceplate/realtime/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"stability_window_ms", c.StabilityWindowMs},
		{"stability_sd_threshold_n", c.StabilitySDThresholdN},
		{"stability_confirm_ms", c.StabilityConfirmMs},
		{"body_weight_window_ms", c.BodyWeightWindowMs},
		{"onset_threshold_n", c.OnsetThresholdN},
		{"onset_confirm_ms", c.OnsetConfirmMs},
		{"sample_rate_hz", c.SampleRateHz},
		{"buffer_seconds", c.BufferSeconds},
		{"analysis_window_ms", c.AnalysisWindowMs},
		{"max_trial_ms", c.MaxTrialMs},
		{"quality_window_ms", c.QualityWindowMs},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.MinLoadN != nil && *c.MinLoadN < 0 {
		return fmt.Errorf("min_load_n must be non-negative, got %f", *c.MinLoadN)
	}
	if c.PreOnsetMs != nil && *c.PreOnsetMs < 0 {
		return fmt.Errorf("pre_onset_ms must be non-negative, got %f", *c.PreOnsetMs)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.AsymmetryCeiling != nil && (*c.AsymmetryCeiling < 0 || *c.AsymmetryCeiling > 1) {
		return fmt.Errorf("asymmetry_ceiling must be between 0 and 1, got %f", *c.AsymmetryCeiling)
	}
	if c.GetMinForceN() >= c.GetMaxForceN() {
		return fmt.Errorf("min_force_n (%f) must be below max_force_n (%f)", c.GetMinForceN(), c.GetMaxForceN())
	}

	for name, v := range map[string]*string{
		"analysis_interval": c.AnalysisInterval,
		"feedback_interval": c.FeedbackInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.TestType != nil {
		if _, err := classify.ParseTestType(*c.TestType); err != nil {
			return err
		}
	}
	if c.AthleteLevel != nil && *c.AthleteLevel != "" {
		switch phase.Level(*c.AthleteLevel) {
		case phase.LevelRecreational, phase.LevelTrained, phase.LevelElite:
		default:
			return fmt.Errorf("unknown athlete_level %q", *c.AthleteLevel)
		}
	}
	if c.SWCMethod != nil {
		if _, err := stats.ParseSWCMethod(*c.SWCMethod); err != nil {
			return err
		}
	}
	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

// GetMinLoadN returns the min_load_n value or the default.
func (c *TuningConfig) GetMinLoadN() float64 { return getFloat(c.MinLoadN, 200) }

// GetStabilityWindowMs returns the stability_window_ms value or the default.
func (c *TuningConfig) GetStabilityWindowMs() float64 { return getFloat(c.StabilityWindowMs, 500) }

// GetStabilitySDThresholdN returns the stability_sd_threshold_n value or the default.
func (c *TuningConfig) GetStabilitySDThresholdN() float64 {
	return getFloat(c.StabilitySDThresholdN, 50)
}

// GetStabilityConfirmMs returns the stability_confirm_ms value or the default.
func (c *TuningConfig) GetStabilityConfirmMs() float64 { return getFloat(c.StabilityConfirmMs, 500) }

// GetBodyWeightWindowMs returns the body_weight_window_ms value or the default.
func (c *TuningConfig) GetBodyWeightWindowMs() float64 { return getFloat(c.BodyWeightWindowMs, 1000) }

// GetOnsetThresholdN returns the onset_threshold_n value or the default.
func (c *TuningConfig) GetOnsetThresholdN() float64 { return getFloat(c.OnsetThresholdN, 100) }

// GetOnsetConfirmMs returns the onset_confirm_ms value or the default.
func (c *TuningConfig) GetOnsetConfirmMs() float64 { return getFloat(c.OnsetConfirmMs, 100) }

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *TuningConfig) GetSampleRateHz() float64 { return getFloat(c.SampleRateHz, 1000) }

// GetBufferSeconds returns the buffer_seconds value or the default.
func (c *TuningConfig) GetBufferSeconds() float64 { return getFloat(c.BufferSeconds, 10) }

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5
	}
	return *c.SmoothingWindow
}

// GetAnalysisInterval parses and returns the AnalysisInterval as a time.Duration.
func (c *TuningConfig) GetAnalysisInterval() time.Duration {
	return getDuration(c.AnalysisInterval, 200*time.Millisecond)
}

// GetFeedbackInterval parses and returns the FeedbackInterval as a time.Duration.
func (c *TuningConfig) GetFeedbackInterval() time.Duration {
	return getDuration(c.FeedbackInterval, 100*time.Millisecond)
}

// GetAnalysisWindowMs returns the analysis_window_ms value or the default.
func (c *TuningConfig) GetAnalysisWindowMs() float64 { return getFloat(c.AnalysisWindowMs, 3000) }

// GetPreOnsetMs returns the pre_onset_ms value or the default.
func (c *TuningConfig) GetPreOnsetMs() float64 { return getFloat(c.PreOnsetMs, 1000) }

// GetMaxTrialMs returns the max_trial_ms value or the default.
func (c *TuningConfig) GetMaxTrialMs() float64 { return getFloat(c.MaxTrialMs, 10000) }

// GetMinForceN returns the min_force_n value or the default.
func (c *TuningConfig) GetMinForceN() float64 { return getFloat(c.MinForceN, -50) }

// GetMaxForceN returns the max_force_n value or the default.
func (c *TuningConfig) GetMaxForceN() float64 { return getFloat(c.MaxForceN, 10000) }

// GetNegativeToleranceN returns the negative_tolerance_n value or the default.
func (c *TuningConfig) GetNegativeToleranceN() float64 { return getFloat(c.NegativeToleranceN, 5) }

// GetAsymmetryCeiling returns the asymmetry_ceiling value or the default.
func (c *TuningConfig) GetAsymmetryCeiling() float64 { return getFloat(c.AsymmetryCeiling, 0.15) }

// GetNoiseCeilingN returns the noise_ceiling_n value or the default.
func (c *TuningConfig) GetNoiseCeilingN() float64 { return getFloat(c.NoiseCeilingN, 50) }

// GetFlatSignalSDN returns the flat_signal_sd_n value or the default.
func (c *TuningConfig) GetFlatSignalSDN() float64 { return getFloat(c.FlatSignalSDN, 0.05) }

// GetQualityWindowMs returns the quality_window_ms value or the default.
func (c *TuningConfig) GetQualityWindowMs() float64 { return getFloat(c.QualityWindowMs, 500) }

// GetTestType returns the fixed protocol, or Undetected to classify each trial.
func (c *TuningConfig) GetTestType() classify.TestType {
	if c.TestType == nil {
		return classify.Undetected
	}
	t, err := classify.ParseTestType(*c.TestType)
	if err != nil {
		return classify.Undetected
	}
	return t
}

// GetAthlete returns the athlete profile used to adapt phase thresholds.
func (c *TuningConfig) GetAthlete() phase.Athlete {
	a := phase.Athlete{
		Level: phase.Level(getString(c.AthleteLevel, string(phase.LevelTrained))),
		Sport: phase.Sport(getString(c.AthleteSport, string(phase.SportGeneral))),
	}
	if c.AthleteAge != nil {
		a.Age = *c.AthleteAge
	}
	return a
}

// GetSWCMethod returns the swc_method value or the default.
func (c *TuningConfig) GetSWCMethod() stats.SWCMethod {
	m, err := stats.ParseSWCMethod(getString(c.SWCMethod, string(stats.SWCHopkins)))
	if err != nil {
		return stats.SWCHopkins
	}
	return m
}

// GetMQTTBroker returns the broker URL; empty disables MQTT publishing.
func (c *TuningConfig) GetMQTTBroker() string { return getString(c.MQTTBroker, "") }

// GetMQTTTopicPrefix returns the mqtt_topic_prefix value or the default.
func (c *TuningConfig) GetMQTTTopicPrefix() string { return getString(c.MQTTTopicPrefix, "forceplate") }

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *TuningConfig) GetMQTTClientID() string { return getString(c.MQTTClientID, "forceplate-engine") }

// GetDBPath returns the db_path value or the default.
func (c *TuningConfig) GetDBPath() string { return getString(c.DBPath, "forceplate.db") }

// BaselineConfig converts the baseline fields for the detectors.
func (c *TuningConfig) BaselineConfig() baseline.Config {
	return baseline.Config{
		MinLoadN:              c.GetMinLoadN(),
		StabilityWindowMs:     c.GetStabilityWindowMs(),
		StabilitySDThresholdN: c.GetStabilitySDThresholdN(),
		StabilityConfirmMs:    c.GetStabilityConfirmMs(),
		BodyWeightWindowMs:    c.GetBodyWeightWindowMs(),
		OnsetThresholdN:       c.GetOnsetThresholdN(),
		OnsetConfirmMs:        c.GetOnsetConfirmMs(),
	}
}

// QualityLimits converts the signal quality ceilings.
func (c *TuningConfig) QualityLimits() realtime.QualityLimits {
	return realtime.QualityLimits{
		MinForceN:          c.GetMinForceN(),
		MaxForceN:          c.GetMaxForceN(),
		NegativeToleranceN: c.GetNegativeToleranceN(),
		AsymmetryCeiling:   c.GetAsymmetryCeiling(),
		NoiseCeilingN:      c.GetNoiseCeilingN(),
		FlatSignalSDN:      c.GetFlatSignalSDN(),
		WindowMs:           c.GetQualityWindowMs(),
	}
}

// RealtimeConfig assembles a live session configuration.
func (c *TuningConfig) RealtimeConfig() realtime.Config {
	return realtime.Config{
		SampleRate:       c.GetSampleRateHz(),
		BufferSeconds:    c.GetBufferSeconds(),
		SmoothingWindow:  c.GetSmoothingWindow(),
		AnalysisInterval: c.GetAnalysisInterval(),
		FeedbackInterval: c.GetFeedbackInterval(),
		AnalysisWindowMs: c.GetAnalysisWindowMs(),
		PreOnsetMs:       c.GetPreOnsetMs(),
		MaxTrialMs:       c.GetMaxTrialMs(),
		Baseline:         c.BaselineConfig(),
		Quality:          c.QualityLimits(),
		Test:             c.GetTestType(),
		Athlete:          c.GetAthlete(),
	}
}
