package phase

import (
	"math"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// PhaseSegment is a labelled run of samples. Start and End are inclusive
// sample indices into the trial.
type PhaseSegment struct {
	Phase      Phase       `json:"phase"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	PeakForce  float64     `json:"peak_force_n"`
	AvgForce   float64     `json:"avg_force_n"`
	DurationMs float64     `json:"duration_ms"`
	Quality    float64     `json:"quality"`
	Band       QualityBand `json:"band"`
}

// Len returns the number of samples covered.
func (s PhaseSegment) Len() int { return s.End - s.Start + 1 }

// Segment smooths a completed trial and splits it into phase segments.
func Segment(trial *samples.Trial, bodyWeightN float64, test classify.TestType, th Thresholds) []PhaseSegment {
	return SegmentForces(trial.Totals(), bodyWeightN, trial.SampleRate, test, th)
}

// SegmentForces is Segment over a raw total-force series.
func SegmentForces(totals []float64, bodyWeightN, sampleRate float64, test classify.TestType, th Thresholds) []PhaseSegment {
	if len(totals) == 0 || bodyWeightN <= 0 || sampleRate <= 0 {
		return nil
	}
	smoothed := samples.MovingAverage(totals, th.SmoothingWindow)
	labels := Label(smoothed, NewRules(th, bodyWeightN, sampleRate, false))
	refineBraking(labels, smoothed, totals, bodyWeightN, sampleRate, th.QuietBand)
	segs := buildSegments(labels, samples.MsToSamples(th.MinPhaseMs, sampleRate))
	for i := range segs {
		fillSegment(&segs[i], totals, bodyWeightN, sampleRate, test)
	}
	return segs
}

// Label walks smoothed once and returns the phase after each sample.
func Label(smoothed []float64, rules Rules) []Phase {
	hl := rules.HistoryLen()
	labels := make([]Phase, len(smoothed))
	cur := QuietStanding
	for i, v := range smoothed {
		from := max(0, i-hl+1)
		cur = rules.Next(cur, v, smoothed[from:i+1])
		labels[i] = cur
	}
	return labels
}

// refineBraking moves the braking→propulsion boundary of each
// countermovement to the sample where the centre of mass stops descending,
// found by integrating net force from the point the trace left the quiet
// band. The force thresholds alone can be crossed within a few samples on
// a fast rise, which would fold braking into propulsion.
func refineBraking(labels []Phase, smoothed, totals []float64, bw, rate, quietBand float64) {
	loaded := func(p Phase) bool { return p == Braking || p == Propulsion }
	for i := 1; i < len(labels); i++ {
		if labels[i-1] != Unloading || !loaded(labels[i]) {
			continue
		}
		start, end := i, i
		for end+1 < len(labels) && loaded(labels[end+1]) {
			end++
		}
		i = end

		from := start - 1
		for from > 0 && labels[from-1] == Unloading {
			from--
		}
		for from > 0 && math.Abs(smoothed[from-1]/bw-1) > quietBand {
			from--
		}
		// Velocity in units of g·s: only its sign matters here.
		var v float64
		for k := from; k < start; k++ {
			v += (totals[k]/bw - 1) / rate
		}
		if v >= 0 {
			continue
		}
		turn := -1
		for k := start; k <= end; k++ {
			v += (totals[k]/bw - 1) / rate
			if v >= 0 {
				turn = k
				break
			}
		}
		if turn < 0 {
			continue
		}
		for k := start; k <= end; k++ {
			if k < turn {
				labels[k] = Braking
			} else {
				labels[k] = Propulsion
			}
		}
	}
}

// buildSegments turns per-sample labels into segments. A run shorter than
// minSamples is not emitted and its start is not advanced, so its samples
// fold into the following run. Adjacent runs with the same phase are
// merged, and a short trailing run is dropped.
func buildSegments(labels []Phase, minSamples int) []PhaseSegment {
	var segs []PhaseSegment
	emit := func(p Phase, start, end int) {
		if n := len(segs); n > 0 && segs[n-1].Phase == p && segs[n-1].End == start-1 {
			segs[n-1].End = end
			return
		}
		segs = append(segs, PhaseSegment{Phase: p, Start: start, End: end})
	}

	if len(labels) == 0 {
		return nil
	}
	start := 0
	runStart := 0
	for i := 1; i <= len(labels); i++ {
		if i < len(labels) && labels[i] == labels[runStart] {
			continue
		}
		if i-runStart >= minSamples {
			emit(labels[runStart], start, i-1)
			start = i
		}
		runStart = i
	}
	return segs
}

func fillSegment(s *PhaseSegment, totals []float64, bw, rate float64, test classify.TestType) {
	// Guard against indices from a caller-supplied label slice.
	s.Start = max(0, s.Start)
	s.End = min(len(totals)-1, s.End)
	var sum float64
	s.PeakForce = totals[s.Start]
	for _, v := range totals[s.Start : s.End+1] {
		sum += v
		s.PeakForce = max(s.PeakForce, v)
	}
	s.AvgForce = sum / float64(s.Len())
	s.DurationMs = float64(s.Len()) / rate * 1000
	s.Quality = SegmentQuality(*s, totals[s.Start:s.End+1], bw, test)
	s.Band = BandFor(s.Quality)
}
