package stats

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// CI is a confidence interval around a point estimate.
type CI struct {
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Level    float64 `json:"level"`
}

// Statistic reduces a sample to one number.
type Statistic func([]float64) float64

// MeanStatistic is the sample mean, for use with BootstrapCI.
func MeanStatistic(x []float64) float64 { return stat.Mean(x, nil) }

// BootstrapCI resamples x with replacement iterations times and returns the
// percentile interval for fn at the given level (e.g. 0.95). The same seed
// always gives the same interval.
func BootstrapCI(x []float64, fn Statistic, level float64, iterations int, seed uint64) (CI, error) {
	if err := need("bootstrap", len(x), 2); err != nil {
		return CI{}, err
	}
	if level <= 0 || level >= 1 {
		return CI{}, fmt.Errorf("bootstrap: level must be within (0, 1), got %v", level)
	}
	if iterations < 100 {
		return CI{}, fmt.Errorf("bootstrap: need at least 100 iterations, got %d", iterations)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
	est := make([]float64, iterations)
	resample := make([]float64, len(x))
	for i := range est {
		for j := range resample {
			resample[j] = x[rng.IntN(len(x))]
		}
		est[i] = fn(resample)
	}
	alpha := (1 - level) / 2
	lo, _ := Percentile(est, 100*alpha)
	hi, _ := Percentile(est, 100*(1-alpha))
	return CI{Estimate: fn(x), Lower: lo, Upper: hi, Level: level}, nil
}
