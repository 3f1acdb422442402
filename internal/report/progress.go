// Package report turns stored trials into something a coach can read: a
// progress summary for one metric, an interactive force-time chart and a
// trend plot.
package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/stats"
)

// Progress summarises one metric across an athlete's trials, oldest first.
// Parts that need more observations than are available are left nil and
// explained in Notes.
type Progress struct {
	Metric         string                          `json:"metric"`
	HigherIsBetter bool                            `json:"higher_is_better"`
	Summary        stats.Summary                   `json:"summary"`
	Reliability    *stats.ReliabilityResult        `json:"reliability,omitempty"`
	Trend          *stats.TrendResult              `json:"trend,omitempty"`
	SWCMethod      stats.SWCMethod                 `json:"swc_method"`
	SWC            float64                         `json:"swc"`
	Latest         float64                         `json:"latest"`
	Baseline       float64                         `json:"baseline"`
	Change         *stats.MagnitudeInferenceResult `json:"change,omitempty"`
	Notes          []string                        `json:"notes,omitempty"`
}

// BuildProgress describes values, estimates reliability and trend, derives
// the smallest worthwhile change with method and judges the latest value
// against the mean of the ones before it.
func BuildProgress(metric string, values []float64, method stats.SWCMethod) (Progress, error) {
	p := Progress{
		Metric:         metric,
		HigherIsBetter: metrics.HigherIsBetter(metric),
		SWCMethod:      method,
	}
	sum, err := stats.Describe(values)
	if err != nil {
		return p, fmt.Errorf("progress %s: %w", metric, err)
	}
	p.Summary = sum

	if rel, err := stats.ICCSplitHalf(values); err != nil {
		p.note("reliability: %v", err)
	} else {
		p.Reliability = &rel
	}
	if tr, err := stats.Trend(values, p.HigherIsBetter); err != nil {
		p.note("trend: %v", err)
	} else {
		p.Trend = &tr
	}
	if p.SWC, err = stats.SWCFromValues(method, values); err != nil {
		p.note("swc: %v", err)
	}

	prev := values[:len(values)-1]
	p.Latest = values[len(values)-1]
	p.Baseline, _ = stats.Mean(prev)
	if p.SWC <= 0 {
		p.note("change: no smallest worthwhile change to judge against")
		return p, nil
	}
	mbi, err := stats.MBI(p.Latest-p.Baseline, p.SWC, changeSE(prev), p.HigherIsBetter)
	if err != nil {
		p.note("change: %v", err)
		return p, nil
	}
	p.Change = &mbi
	return p, nil
}

// changeSE is the standard error of a single new observation compared with
// the mean of prev. With fewer than two previous values it is zero and MBI
// falls back to the SWC as its scale.
func changeSE(prev []float64) float64 {
	sd, err := stats.SD(prev)
	if err != nil {
		return 0
	}
	return sd * math.Sqrt(1+1/float64(len(prev)))
}

func (p *Progress) note(format string, args ...any) {
	p.Notes = append(p.Notes, fmt.Sprintf(format, args...))
}

// WriteProgress prints p as an aligned table.
func WriteProgress(w io.Writer, p Progress) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, format string, args ...any) {
		fmt.Fprintf(tw, "%s\t%s\n", k, fmt.Sprintf(format, args...))
	}
	direction := "higher"
	if !p.HigherIsBetter {
		direction = "lower"
	}
	row("metric", "%s (%s is better)", p.Metric, direction)
	row("trials", "%d", p.Summary.N)
	row("mean ± sd", "%.2f ± %.2f", p.Summary.Mean, p.Summary.SD)
	row("cv", "%.1f%%", 100*p.Summary.CV)
	row("range", "%.2f to %.2f", p.Summary.Min, p.Summary.Max)
	if r := p.Reliability; r != nil {
		row("icc", "%.3f (sem %.2f, mdc95 %.2f)", r.ICC, r.SEM, r.MDC95)
	}
	if tr := p.Trend; tr != nil {
		row("trend", "%s (slope %.3f/trial, p=%.3f)", tr.Direction, tr.Slope, tr.P)
	}
	row("swc", "%.2f (%s)", p.SWC, p.SWCMethod)
	row("latest", "%.2f vs %.2f", p.Latest, p.Baseline)
	if c := p.Change; c != nil {
		row("change", "%s (%.0f/%.0f/%.0f)", c.Label, c.Beneficial, c.Trivial, c.Harmful)
	}
	for _, n := range p.Notes {
		row("note", "%s", n)
	}
	return tw.Flush()
}
