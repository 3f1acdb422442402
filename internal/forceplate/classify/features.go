package classify

import (
	"fmt"
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// MovementFeatures summarises a candidate movement window. Force values are
// in Newtons, durations in milliseconds.
type MovementFeatures struct {
	MaxForce           float64 `json:"max_force_n"`
	MinForce           float64 `json:"min_force_n"`
	AvgForce           float64 `json:"avg_force_n"`
	RelativePeakForce  float64 `json:"relative_peak_force"` // pre-takeoff peak / BW
	HasUnloading       bool    `json:"has_unloading"`
	UnloadingDepth     float64 `json:"unloading_depth"` // (BW - min) / BW within the unloading run
	FlightSamples      int     `json:"flight_samples"`
	FlightMs           float64 `json:"flight_ms"`
	HasCountermovement bool    `json:"has_countermovement"`
	MaxRFD             float64 `json:"max_rfd_n_per_s"`
	DurationMs         float64 `json:"duration_ms"`
	Variability        float64 `json:"variability"` // coefficient of variation
	TakeoffIndex       int     `json:"takeoff_index"` // -1 when the window has no takeoff
}

// HasFlight reports whether any sample was airborne.
func (f MovementFeatures) HasFlight() bool { return f.FlightSamples > 0 }

// ExtractFeatures computes MovementFeatures over totals sampled at
// sampleRate Hz.
func ExtractFeatures(totals []float64, bodyWeightN, sampleRate float64) (MovementFeatures, error) {
	if len(totals) < MinWindowSamples {
		return MovementFeatures{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(totals), MinWindowSamples)
	}
	if bodyWeightN <= 0 {
		return MovementFeatures{}, fmt.Errorf("body weight must be positive, got %f", bodyWeightN)
	}
	if sampleRate <= 0 {
		return MovementFeatures{}, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	bw := bodyWeightN
	f := MovementFeatures{
		MaxForce:     totals[0],
		MinForce:     totals[0],
		TakeoffIndex: -1,
		DurationMs:   float64(len(totals)) / sampleRate * 1000,
	}

	var sum, sum2 float64
	contact := false
	for i, v := range totals {
		f.MaxForce = math.Max(f.MaxForce, v)
		f.MinForce = math.Min(f.MinForce, v)
		sum += v
		sum2 += v * v
		if v < FlightLevel*bw {
			f.FlightSamples++
			if contact && f.TakeoffIndex < 0 {
				f.TakeoffIndex = i
			}
		} else if v >= ContactLevel*bw {
			contact = true
		}
	}
	n := float64(len(totals))
	f.AvgForce = sum / n
	if f.AvgForce > 0 {
		if v := sum2/n - f.AvgForce*f.AvgForce; v > 0 {
			f.Variability = math.Sqrt(v) / f.AvgForce
		}
	}
	f.FlightMs = float64(f.FlightSamples) / sampleRate * 1000

	end := len(totals)
	if f.TakeoffIndex >= 0 {
		end = f.TakeoffIndex
	}
	peakIdx := 0
	for i := 0; i < end; i++ {
		if totals[i] > totals[peakIdx] {
			peakIdx = i
		}
	}
	f.RelativePeakForce = totals[peakIdx] / bw

	runEnd := f.detectUnloading(totals[:peakIdx+1], bw, sampleRate)
	if f.HasUnloading {
		for i := runEnd; i < end; i++ {
			if totals[i] > BrakingLevel*bw {
				f.HasCountermovement = true
				break
			}
		}
	}

	f.MaxRFD = maxRFD(totals, sampleRate, RFDWindowMs)
	return f, nil
}

// detectUnloading looks for the first dip below UnloadingLevel (but above
// FlightLevel) that follows a loaded sample and lasts at least
// MinUnloadingMs. It returns the index just after the run.
func (f *MovementFeatures) detectUnloading(totals []float64, bw, rate float64) int {
	minRun := samples.MsToSamples(MinUnloadingMs, rate)
	armed := false
	runStart := -1
	runMin := 0.0
	for i, v := range totals {
		inDip := v > FlightLevel*bw && v < UnloadingLevel*bw
		switch {
		case inDip && armed && runStart < 0:
			runStart, runMin = i, v
		case inDip && runStart >= 0:
			runMin = math.Min(runMin, v)
		case !inDip:
			if runStart >= 0 && i-runStart >= minRun {
				f.HasUnloading = true
				f.UnloadingDepth = (bw - runMin) / bw
				return i
			}
			runStart = -1
			armed = v >= UnloadingLevel*bw
		}
	}
	return len(totals)
}

// maxRFD returns the steepest rise over any window of windowMs, in N/s.
func maxRFD(totals []float64, rate, windowMs float64) float64 {
	w := samples.MsToSamples(windowMs, rate)
	if len(totals) <= w {
		return 0
	}
	dt := float64(w) / rate
	best := 0.0
	for i := 0; i+w < len(totals); i++ {
		best = math.Max(best, (totals[i+w]-totals[i])/dt)
	}
	return best
}
