package samples

import (
	"fmt"
	"sort"
)

// MovingAverage applies a centered moving-average filter. Even windows are
// widened by one so the filter stays centered; near the edges the average
// covers only the samples available.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2

	// Prefix sums keep this O(n) for long recordings.
	prefix := make([]float64, len(values)+1)
	for i, v := range values {
		prefix[i+1] = prefix[i] + v
	}
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		out[i] = (prefix[hi] - prefix[lo]) / float64(hi-lo)
	}
	return out
}

// TrailingAverage returns the mean of the last window values, the causal
// smoothing used for live feedback.
func TrailingAverage(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if window < 1 || window > len(values) {
		window = len(values)
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// Resample interpolates samples onto a constant-rate grid starting at the
// first timestamp. COP is interpolated only when both neighbours carry it.
func Resample(ss []ForceSample, rate float64) ([]ForceSample, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("resample rate must be positive, got %f", rate)
	}
	if len(ss) < 2 {
		return append([]ForceSample(nil), ss...), nil
	}
	if !sort.SliceIsSorted(ss, func(i, j int) bool { return ss[i].TimestampMs < ss[j].TimestampMs }) {
		return nil, ErrOutOfOrder
	}

	step := 1000 / rate
	start := ss[0].TimestampMs
	end := ss[len(ss)-1].TimestampMs
	out := make([]ForceSample, 0, int((end-start)/step)+1)

	j := 0
	for t := start; t <= end+1e-9; t += step {
		for j < len(ss)-2 && ss[j+1].TimestampMs < t {
			j++
		}
		a, b := ss[j], ss[j+1]
		span := b.TimestampMs - a.TimestampMs
		frac := 0.0
		if span > 0 {
			frac = (t - a.TimestampMs) / span
		}
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		s := NewSample(t, lerp(a.Left, b.Left, frac), lerp(a.Right, b.Right, frac))
		if a.HasCOP() && b.HasCOP() {
			s = s.WithCOP(
				Point{X: lerp(a.LeftCOP.X, b.LeftCOP.X, frac), Y: lerp(a.LeftCOP.Y, b.LeftCOP.Y, frac)},
				Point{X: lerp(a.RightCOP.X, b.RightCOP.X, frac), Y: lerp(a.RightCOP.Y, b.RightCOP.Y, frac)},
			)
		}
		out = append(out, s)
	}
	return out, nil
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
