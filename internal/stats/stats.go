// Package stats implements the reliability and inference statistics used
// across sessions. It operates on metric values, never on raw force data.
//
// Every function that needs a minimum number of observations returns an
// error wrapping ErrInsufficientData when given fewer, and one wrapping
// ErrDegenerate when the inputs make a ratio or variance meaningless.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData means too few observations for the method.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerate means zero variance or a zero denominator.
	ErrDegenerate = errors.New("degenerate input")
)

func need(name string, have, want int) error {
	if have < want {
		return fmt.Errorf("%s: %w: have %d observations, need %d", name, ErrInsufficientData, have, want)
	}
	return nil
}

func degenerate(name, why string) error {
	return fmt.Errorf("%s: %w: %s", name, ErrDegenerate, why)
}

// Mean is the arithmetic mean.
func Mean(x []float64) (float64, error) {
	if err := need("mean", len(x), 1); err != nil {
		return 0, err
	}
	return stat.Mean(x, nil), nil
}

// Median is the 50th percentile.
func Median(x []float64) (float64, error) {
	if err := need("median", len(x), 1); err != nil {
		return 0, err
	}
	return Percentile(x, 50)
}

// Variance is the unbiased sample variance.
func Variance(x []float64) (float64, error) {
	if err := need("variance", len(x), 2); err != nil {
		return 0, err
	}
	return stat.Variance(x, nil), nil
}

// SD is the sample standard deviation.
func SD(x []float64) (float64, error) {
	v, err := Variance(x)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// CV is SD / mean.
func CV(x []float64) (float64, error) {
	sd, err := SD(x)
	if err != nil {
		return 0, err
	}
	m := stat.Mean(x, nil)
	if m == 0 {
		return 0, degenerate("cv", "mean is zero")
	}
	return sd / math.Abs(m), nil
}

// Skewness is the sample skewness.
func Skewness(x []float64) (float64, error) {
	if err := need("skewness", len(x), 3); err != nil {
		return 0, err
	}
	if floats.Max(x) == floats.Min(x) {
		return 0, degenerate("skewness", "zero variance")
	}
	return stat.Skew(x, nil), nil
}

// Kurtosis is the sample excess kurtosis.
func Kurtosis(x []float64) (float64, error) {
	if err := need("kurtosis", len(x), 4); err != nil {
		return 0, err
	}
	if floats.Max(x) == floats.Min(x) {
		return 0, degenerate("kurtosis", "zero variance")
	}
	return stat.ExKurtosis(x, nil), nil
}

// Percentile returns the p-th percentile (0-100) by linear interpolation.
func Percentile(x []float64, p float64) (float64, error) {
	if err := need("percentile", len(x), 1); err != nil {
		return 0, err
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("percentile must be within [0, 100], got %v", p)
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	if len(sorted) == 1 {
		return sorted[0], nil
	}
	// Linear interpolation between closest ranks (type 7).
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Pearson is the product-moment correlation of x and y.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("pearson: length mismatch %d vs %d", len(x), len(y))
	}
	if err := need("pearson", len(x), 3); err != nil {
		return 0, err
	}
	if floats.Max(x) == floats.Min(x) || floats.Max(y) == floats.Min(y) {
		return 0, degenerate("pearson", "zero variance")
	}
	return stat.Correlation(x, y, nil), nil
}

// IQRFilter holds the outcome of 1.5×IQR fencing.
type IQRFilter struct {
	Kept    []float64 `json:"kept"`
	Removed []float64 `json:"removed"`
	Lower   float64   `json:"lower_fence"`
	Upper   float64   `json:"upper_fence"`
}

// RemoveOutliersIQR drops values outside [Q1-1.5·IQR, Q3+1.5·IQR],
// preserving the order of the rest.
func RemoveOutliersIQR(x []float64) (IQRFilter, error) {
	if err := need("iqr outliers", len(x), 4); err != nil {
		return IQRFilter{}, err
	}
	q1, _ := Percentile(x, 25)
	q3, _ := Percentile(x, 75)
	iqr := q3 - q1
	f := IQRFilter{Lower: q1 - 1.5*iqr, Upper: q3 + 1.5*iqr}
	for _, v := range x {
		if v < f.Lower || v > f.Upper {
			f.Removed = append(f.Removed, v)
		} else {
			f.Kept = append(f.Kept, v)
		}
	}
	return f, nil
}

// Summary is a descriptive snapshot of a series.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	SD     float64 `json:"sd"`
	CV     float64 `json:"cv"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe summarises x. It needs two observations for the spread; CV is
// left at zero when the mean is zero.
func Describe(x []float64) (Summary, error) {
	sd, err := SD(x)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{N: len(x), Mean: stat.Mean(x, nil), SD: sd, Min: floats.Min(x), Max: floats.Max(x)}
	s.Median, _ = Median(x)
	if cv, err := CV(x); err == nil {
		s.CV = cv
	}
	return s, nil
}
