package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ReliabilityResult reports test-retest reliability. Approximate is set
// when the ICC came from a split-half of a single list rather than matched
// pairs; Note then says so in words.
type ReliabilityResult struct {
	ICC         float64 `json:"icc"`
	SEM         float64 `json:"sem"`
	MDC95       float64 `json:"mdc95"`
	SD          float64 `json:"sd"`
	Pairs       int     `json:"pairs"`
	Approximate bool    `json:"approximate"`
	Note        string  `json:"note,omitempty"`
}

const (
	minICCPairs        = 3
	minSplitHalfValues = 6
	z95                = 1.96
)

// ICC computes ICC(3,1): two-way mixed effects, consistency, single
// measurement (Shrout & Fleiss 1979) from matched test/retest values.
func ICC(test, retest []float64) (ReliabilityResult, error) {
	if len(test) != len(retest) {
		return ReliabilityResult{}, fmt.Errorf("icc: length mismatch %d vs %d", len(test), len(retest))
	}
	if err := need("icc", 2*len(test), 2*minICCPairs); err != nil {
		return ReliabilityResult{}, err
	}

	n := float64(len(test))
	const k = 2.0
	all := append(append(make([]float64, 0, 2*len(test)), test...), retest...)
	grand := stat.Mean(all, nil)

	var ssRows, sst float64
	for i := range test {
		rowMean := (test[i] + retest[i]) / k
		ssRows += k * (rowMean - grand) * (rowMean - grand)
		sst += (test[i]-grand)*(test[i]-grand) + (retest[i]-grand)*(retest[i]-grand)
	}
	m1 := stat.Mean(test, nil)
	m2 := stat.Mean(retest, nil)
	ssCols := n * ((m1-grand)*(m1-grand) + (m2-grand)*(m2-grand))
	sse := math.Max(0, sst-ssRows-ssCols)

	msr := ssRows / (n - 1)
	mse := sse / ((n - 1) * (k - 1))
	den := msr + (k-1)*mse
	if den == 0 {
		return ReliabilityResult{}, degenerate("icc", "no between-subject or residual variance")
	}
	icc := (msr - mse) / den

	sd := stat.StdDev(all, nil)
	res := ReliabilityResult{ICC: icc, SD: sd, Pairs: len(test)}
	res.SEM = SEM(sd, icc)
	res.MDC95 = MDC95(res.SEM)
	return res, nil
}

// ICCSplitHalf approximates reliability from a single list by treating the
// first half as the test and the second half as the retest. With an odd
// count the middle value is left out.
func ICCSplitHalf(values []float64) (ReliabilityResult, error) {
	if err := need("icc split-half", len(values), minSplitHalfValues); err != nil {
		return ReliabilityResult{}, err
	}
	h := len(values) / 2
	res, err := ICC(values[:h], values[len(values)-h:])
	if err != nil {
		return res, err
	}
	res.Approximate = true
	res.Note = "split-half approximation: first half vs second half of a single series, not matched test-retest pairs"
	return res, nil
}

// SEM is the standard error of measurement, SD·√(1-ICC).
func SEM(sd, icc float64) float64 {
	return sd * math.Sqrt(math.Max(0, 1-icc))
}

// MDC95 is the minimal detectable change at 95% confidence.
func MDC95(sem float64) float64 {
	return z95 * math.Sqrt2 * sem
}

// TypicalError is SD(differences)/√2 over matched pairs.
func TypicalError(test, retest []float64) (float64, error) {
	if len(test) != len(retest) {
		return 0, fmt.Errorf("typical error: length mismatch %d vs %d", len(test), len(retest))
	}
	if err := need("typical error", len(test), 2); err != nil {
		return 0, err
	}
	diffs := make([]float64, len(test))
	for i := range test {
		diffs[i] = retest[i] - test[i]
	}
	return stat.StdDev(diffs, nil) / math.Sqrt2, nil
}
