// Package samples holds the force-plate data model: timestamped dual-platform
// samples, bounded ring buffers and immutable trials.
package samples

import (
	"errors"
	"math"
)

var (
	// ErrOutOfOrder is returned when a sample's timestamp does not advance.
	ErrOutOfOrder = errors.New("sample timestamp not strictly increasing")
	// ErrTrialComplete is returned when appending to a completed trial.
	ErrTrialComplete = errors.New("trial is complete")
)

// Point is a centre-of-pressure location on a platform, in millimetres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ForceSample is one timestamped observation from both platforms. Values are
// derived once in NewSample and the sample is passed by value afterwards.
type ForceSample struct {
	TimestampMs float64 `json:"t_ms"`
	Left        float64 `json:"left"`
	Right       float64 `json:"right"`
	LeftCOP     *Point  `json:"left_cop,omitempty"`
	RightCOP    *Point  `json:"right_cop,omitempty"`

	// Derived
	Total     float64 `json:"total"`
	Asymmetry float64 `json:"asymmetry"` // |L-R| / (L+R), 0..1
	Stability float64 `json:"stability"` // min(L,R) / max(L,R), 0..1
}

// NewSample builds a sample and its derived fields.
func NewSample(timestampMs, left, right float64) ForceSample {
	s := ForceSample{
		TimestampMs: timestampMs,
		Left:        left,
		Right:       right,
		Total:       left + right,
	}
	s.Asymmetry = AsymmetryIndex(left, right)
	if left > 0 && right > 0 {
		s.Stability = math.Min(left, right) / math.Max(left, right)
	}
	return s
}

// WithCOP returns a copy of s carrying per-platform centre-of-pressure data.
func (s ForceSample) WithCOP(left, right Point) ForceSample {
	l, r := left, right
	s.LeftCOP = &l
	s.RightCOP = &r
	return s
}

// HasCOP reports whether both platform COP readings are present.
func (s ForceSample) HasCOP() bool {
	return s.LeftCOP != nil && s.RightCOP != nil
}

// CombinedCOP returns the force-weighted centre of pressure of both
// platforms. ok is false when COP is missing or the total force is not
// positive.
func (s ForceSample) CombinedCOP() (p Point, ok bool) {
	if !s.HasCOP() || s.Total <= 0 {
		return Point{}, false
	}
	l := math.Max(s.Left, 0)
	r := math.Max(s.Right, 0)
	if l+r <= 0 {
		return Point{}, false
	}
	p.X = (s.LeftCOP.X*l + s.RightCOP.X*r) / (l + r)
	p.Y = (s.LeftCOP.Y*l + s.RightCOP.Y*r) / (l + r)
	return p, true
}

// AsymmetryIndex is |left-right| normalised by the total, clamped to [0, 1].
// Returns 0 when the total is not positive.
func AsymmetryIndex(left, right float64) float64 {
	total := left + right
	if total <= 0 {
		return 0
	}
	a := math.Abs(left-right) / total
	if a > 1 {
		return 1
	}
	return a
}

// Totals extracts the total-force series from a sample slice.
func Totals(ss []ForceSample) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Total
	}
	return out
}

// Lefts extracts the left-platform series.
func Lefts(ss []ForceSample) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Left
	}
	return out
}

// Rights extracts the right-platform series.
func Rights(ss []ForceSample) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Right
	}
	return out
}
