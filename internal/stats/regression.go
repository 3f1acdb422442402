package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Regression is an ordinary least-squares fit y = Intercept + Slope·x.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
	// SlopeSE is the standard error of the slope; zero for a perfect fit.
	SlopeSE float64 `json:"slope_se"`
}

// LinearRegression fits y on x. It needs at least three points and some
// spread in x.
func LinearRegression(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, fmt.Errorf("regression: length mismatch %d vs %d", len(x), len(y))
	}
	if err := need("regression", len(x), 3); err != nil {
		return Regression{}, err
	}
	if floats.Max(x) == floats.Min(x) {
		return Regression{}, degenerate("regression", "x has no spread")
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r := Regression{Slope: beta, Intercept: alpha, N: len(x)}

	my := stat.Mean(y, nil)
	mx := stat.Mean(x, nil)
	var sse, sst, sxx float64
	for i := range x {
		res := y[i] - (alpha + beta*x[i])
		sse += res * res
		sst += (y[i] - my) * (y[i] - my)
		sxx += (x[i] - mx) * (x[i] - mx)
	}
	if sst > 0 {
		r.R2 = 1 - sse/sst
	}
	if len(x) > 2 {
		r.SlopeSE = math.Sqrt(sse / float64(len(x)-2) / sxx)
	}
	return r, nil
}

// TrendDirection classifies a trend over sessions.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// TrendAlpha is the significance level for trends.
const TrendAlpha = 0.05

// TrendResult is a regression of a metric against session index.
type TrendResult struct {
	Regression
	T           float64        `json:"t"`
	DF          int            `json:"df"`
	P           float64        `json:"p"`
	Significant bool           `json:"significant"`
	Direction   TrendDirection `json:"direction"`
}

// Trend regresses values against their index (0, 1, 2, ...) and tests the
// slope with a Student t statistic.
func Trend(values []float64, higherIsBetter bool) (TrendResult, error) {
	if err := need("trend", len(values), 3); err != nil {
		return TrendResult{}, err
	}
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	reg, err := LinearRegression(x, values)
	if err != nil {
		return TrendResult{}, err
	}
	tr := TrendResult{Regression: reg, DF: len(values) - 2, P: 1}

	switch {
	case reg.SlopeSE > 0:
		tr.T = reg.Slope / reg.SlopeSE
		tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(tr.DF)}
		tr.P = 2 * (1 - tdist.CDF(math.Abs(tr.T)))
	case reg.Slope != 0:
		// Points lie exactly on a sloped line.
		tr.P = 0
	}
	tr.Significant = tr.P < TrendAlpha

	tr.Direction = TrendStable
	if tr.Significant {
		up := reg.Slope > 0
		if up == higherIsBetter {
			tr.Direction = TrendImproving
		} else {
			tr.Direction = TrendDeclining
		}
	}
	return tr, nil
}

// TTestResult is the outcome of a two-sample test.
type TTestResult struct {
	T        float64 `json:"t"`
	DF       float64 `json:"df"`
	P        float64 `json:"p"`
	MeanDiff float64 `json:"mean_diff"`
}

// WelchTTest compares two samples without assuming equal variances,
// using Welch–Satterthwaite degrees of freedom. P is two-sided.
func WelchTTest(a, b []float64) (TTestResult, error) {
	if err := need("welch t-test (a)", len(a), 2); err != nil {
		return TTestResult{}, err
	}
	if err := need("welch t-test (b)", len(b), 2); err != nil {
		return TTestResult{}, err
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))
	sa, sb := va/na, vb/nb
	if sa+sb == 0 {
		return TTestResult{}, degenerate("welch t-test", "both samples have zero variance")
	}
	r := TTestResult{MeanDiff: ma - mb}
	r.T = r.MeanDiff / math.Sqrt(sa+sb)
	r.DF = (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: r.DF}
	r.P = 2 * (1 - tdist.CDF(math.Abs(r.T)))
	return r, nil
}
