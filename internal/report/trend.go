package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/forceplate.report/internal/stats"
)

var (
	pointColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fitColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	bandColor  = color.RGBA{R: 127, G: 127, B: 127, A: 255}
)

// TrendPlot draws p's values against trial index as a PNG: the observations,
// the fitted trend when there is one and dashed lines at mean ± SWC.
func TrendPlot(w io.Writer, p Progress, values []float64) error {
	if len(values) == 0 {
		return fmt.Errorf("trend plot %s: %w", p.Metric, stats.ErrInsufficientData)
	}
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s over %d trials", p.Metric, len(values))
	pl.X.Label.Text = "Trial"
	pl.Y.Label.Text = p.Metric

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("trend plot points: %w", err)
	}
	scatter.GlyphStyle.Color = pointColor
	scatter.GlyphStyle.Radius = vg.Points(3)
	pl.Add(scatter)
	pl.Legend.Add("observed", scatter)

	last := float64(len(values) - 1)
	if tr := p.Trend; tr != nil {
		fit, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: tr.Intercept},
			{X: last, Y: tr.Intercept + tr.Slope*last},
		})
		if err != nil {
			return fmt.Errorf("trend plot fit: %w", err)
		}
		fit.Color = fitColor
		fit.Width = vg.Points(1.5)
		pl.Add(fit)
		pl.Legend.Add(fmt.Sprintf("trend (%s)", tr.Direction), fit)
	}

	if p.SWC > 0 {
		for i, y := range []float64{p.Summary.Mean - p.SWC, p.Summary.Mean + p.SWC} {
			band, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: last, Y: y}})
			if err != nil {
				return fmt.Errorf("trend plot swc: %w", err)
			}
			band.Color = bandColor
			band.Width = vg.Points(1)
			band.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
			pl.Add(band)
			if i == 0 {
				pl.Legend.Add(fmt.Sprintf("mean ± swc (%s)", p.SWCMethod), band)
			}
		}
	}
	pl.Legend.Top = true

	wt, err := pl.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("trend plot render: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
