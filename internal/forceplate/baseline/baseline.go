// Package baseline establishes the quiet-standing reference for a session:
// stability, body weight and the debounced onset of movement.
package baseline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

// Config holds the detection thresholds. All durations are in milliseconds.
type Config struct {
	MinLoadN              float64 // mean total below this is an empty plate
	StabilityWindowMs     float64 // SD window while waiting for stability
	StabilitySDThresholdN float64 // SD ceiling for "standing still"
	StabilityConfirmMs    float64 // condition must hold this long before stability is declared
	BodyWeightWindowMs    float64 // extended window averaged into the body weight
	OnsetThresholdN       float64 // deviation from baseline that counts as movement
	OnsetConfirmMs        float64 // deviation must persist this long
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinLoadN:              200,
		StabilityWindowMs:     500,
		StabilitySDThresholdN: 50,
		StabilityConfirmMs:    500,
		BodyWeightWindowMs:    1000,
		OnsetThresholdN:       100,
		OnsetConfirmMs:        100,
	}
}

// EventKind enumerates detector notifications.
type EventKind string

const (
	EventStabilityAchieved  EventKind = "stability_achieved"
	EventBodyWeightDetected EventKind = "body_weight_detected"
	EventOnsetConfirmed     EventKind = "onset_confirmed"
)

// Event is emitted once per detection cycle.
type Event struct {
	Kind        EventKind `json:"kind"`
	TimestampMs float64   `json:"t_ms"`
	MeanN       float64   `json:"mean_n,omitempty"`
	SDN         float64   `json:"sd_n,omitempty"`
	BodyWeightN float64   `json:"body_weight_n,omitempty"`
}

// StabilityDetector watches total force until the subject has stood still
// long enough to estimate body weight. After body weight is detected it is
// locked until Reset.
type StabilityDetector struct {
	cfg Config

	times  []float64
	totals []float64
	window []float64 // scratch for stats

	timerStart *float64
	stable     bool
	detected   bool
	bodyWeight float64
	lastMean   float64
	lastSD     float64
}

// NewStabilityDetector creates a detector with cfg.
func NewStabilityDetector(cfg Config) *StabilityDetector {
	return &StabilityDetector{cfg: cfg}
}

// Update feeds one sample and returns any events it triggered.
func (d *StabilityDetector) Update(s samples.ForceSample) []Event {
	d.times = append(d.times, s.TimestampMs)
	d.totals = append(d.totals, s.Total)
	d.trim(s.TimestampMs)

	if d.detected {
		return nil
	}

	now := s.TimestampMs
	d.lastMean, d.lastSD = d.stats(now-d.cfg.StabilityWindowMs, now, true)
	if d.lastMean < d.cfg.MinLoadN {
		if d.timerStart != nil {
			monitoring.Debugf("plate unloaded at %.0f ms (mean %.1f N)", now, d.lastMean)
		}
		d.timerStart = nil
		d.stable = false
		return nil
	}
	if d.lastSD >= d.cfg.StabilitySDThresholdN {
		if d.timerStart != nil {
			monitoring.Debugf("stability lost at %.0f ms (sd %.1f N)", now, d.lastSD)
		}
		d.timerStart = nil
		d.stable = false
		return nil
	}

	if d.timerStart == nil {
		start := now
		d.timerStart = &start
	}
	elapsed := now - *d.timerStart

	var events []Event
	if !d.stable && elapsed >= d.cfg.StabilityConfirmMs {
		d.stable = true
		events = append(events, Event{Kind: EventStabilityAchieved, TimestampMs: now, MeanN: d.lastMean, SDN: d.lastSD})
		monitoring.Logf("stability achieved at %.0f ms (mean %.1f N, sd %.1f N)", now, d.lastMean, d.lastSD)
	}

	if d.stable && elapsed >= d.cfg.BodyWeightWindowMs {
		// The sample that completes the window is not averaged in: at the
		// end of quiet standing it is already the first sample of movement.
		mean, sd := d.stats(now-d.cfg.BodyWeightWindowMs, now, false)
		if sd >= d.cfg.StabilitySDThresholdN {
			// Slow drift across the longer window: start over.
			d.timerStart = nil
			d.stable = false
			return events
		}
		d.detected = true
		d.bodyWeight = mean
		events = append(events, Event{Kind: EventBodyWeightDetected, TimestampMs: now, MeanN: mean, SDN: sd, BodyWeightN: mean})
		monitoring.Logf("body weight detected: %.1f N", mean)
	}
	return events
}

// Stable reports whether stability currently holds.
func (d *StabilityDetector) Stable() bool { return d.stable }

// BodyWeight returns the detected body weight in Newtons.
func (d *StabilityDetector) BodyWeight() (float64, bool) { return d.bodyWeight, d.detected }

// LastStats returns the mean and SD from the most recent stability window.
func (d *StabilityDetector) LastStats() (mean, sd float64) { return d.lastMean, d.lastSD }

// Override sets the body weight manually, as if it had been detected.
func (d *StabilityDetector) Override(bodyWeightN float64) {
	d.bodyWeight = bodyWeightN
	d.detected = bodyWeightN > 0
	d.stable = d.detected
}

// Reset starts a new detection cycle.
func (d *StabilityDetector) Reset() {
	d.times = d.times[:0]
	d.totals = d.totals[:0]
	d.timerStart = nil
	d.stable = false
	d.detected = false
	d.bodyWeight = 0
}

// trim drops samples older than the longest window in use.
func (d *StabilityDetector) trim(now float64) {
	keep := math.Max(d.cfg.StabilityWindowMs, d.cfg.BodyWeightWindowMs)
	cut := 0
	for cut < len(d.times) && d.times[cut] < now-keep {
		cut++
	}
	if cut > 0 {
		d.times = append(d.times[:0], d.times[cut:]...)
		d.totals = append(d.totals[:0], d.totals[cut:]...)
	}
}

// stats returns the population mean and SD of totals timestamped in
// [from, to], or [from, to) when withEnd is false.
func (d *StabilityDetector) stats(from, to float64, withEnd bool) (mean, sd float64) {
	d.window = d.window[:0]
	for i, t := range d.times {
		if t < from || t > to || (!withEnd && t == to) {
			continue
		}
		d.window = append(d.window, d.totals[i])
	}
	if len(d.window) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(d.window, nil)
}
