package samples

import (
	"fmt"
	"sort"
)

// Trial is an ordered, contiguous run of samples for one test attempt at a
// constant sample rate. It becomes read-only once Complete is called.
type Trial struct {
	ID         string
	SampleRate float64 // Hz

	samples  []ForceSample
	complete bool
}

// NewTrial creates an empty, open trial.
func NewTrial(sampleRate float64) *Trial {
	return &Trial{SampleRate: sampleRate}
}

// NewTrialFromSamples builds a completed trial from a recording. The samples
// are copied and must have strictly increasing timestamps.
func NewTrialFromSamples(ss []ForceSample, sampleRate float64) (*Trial, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	t := &Trial{SampleRate: sampleRate, samples: make([]ForceSample, 0, len(ss))}
	for i, s := range ss {
		if err := t.Append(s); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	t.Complete()
	return t, nil
}

// Append adds a sample to an open trial.
func (t *Trial) Append(s ForceSample) error {
	if t.complete {
		return ErrTrialComplete
	}
	if n := len(t.samples); n > 0 && s.TimestampMs <= t.samples[n-1].TimestampMs {
		return fmt.Errorf("%w: %.3f after %.3f", ErrOutOfOrder, s.TimestampMs, t.samples[n-1].TimestampMs)
	}
	t.samples = append(t.samples, s)
	return nil
}

// Complete marks the trial immutable.
func (t *Trial) Complete() { t.complete = true }

// IsComplete reports whether Complete has been called.
func (t *Trial) IsComplete() bool { return t.complete }

// Len returns the number of samples.
func (t *Trial) Len() int { return len(t.samples) }

// At returns the sample at index i.
func (t *Trial) At(i int) ForceSample { return t.samples[i] }

// Samples returns a copy of the trial's samples.
func (t *Trial) Samples() []ForceSample {
	out := make([]ForceSample, len(t.samples))
	copy(out, t.samples)
	return out
}

// Totals returns the total-force series.
func (t *Trial) Totals() []float64 { return Totals(t.samples) }

// Dt returns the sample period in seconds.
func (t *Trial) Dt() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return 1 / t.SampleRate
}

// DurationMs returns the span covered by the samples at the declared rate.
func (t *Trial) DurationMs() float64 {
	return float64(len(t.samples)) * t.Dt() * 1000
}

// IndexToMs converts a sample count to milliseconds at the trial's rate.
func (t *Trial) IndexToMs(n int) float64 {
	return float64(n) * t.Dt() * 1000
}

// MsToSamples converts a duration to a sample count at the trial's rate,
// never returning less than 1.
func (t *Trial) MsToSamples(ms float64) int {
	return MsToSamples(ms, t.SampleRate)
}

// MsToSamples converts a duration to a sample count at rate Hz (minimum 1).
func MsToSamples(ms, rate float64) int {
	n := int(ms*rate/1000 + 0.5)
	if n < 1 {
		return 1
	}
	return n
}

// EstimateSampleRate infers the rate from the median timestamp delta.
// Returns 0 when fewer than two samples are available.
func EstimateSampleRate(ss []ForceSample) float64 {
	if len(ss) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(ss)-1)
	for i := 1; i < len(ss); i++ {
		if d := ss[i].TimestampMs - ss[i-1].TimestampMs; d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0
	}
	sort.Float64s(deltas)
	median := deltas[len(deltas)/2]
	return 1000 / median
}

// Validate checks the ordering invariant over the whole trial.
func (t *Trial) Validate() error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", t.SampleRate)
	}
	for i := 1; i < len(t.samples); i++ {
		if t.samples[i].TimestampMs <= t.samples[i-1].TimestampMs {
			return fmt.Errorf("sample %d: %w", i, ErrOutOfOrder)
		}
	}
	return nil
}
