package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
)

// maxChartPoints bounds the force series so a 10 s trial at 1 kHz stays
// responsive in the browser.
const maxChartPoints = 2000

// AssetsHost is where the rendered page loads echarts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ErrNoSamples is returned when a result carries no raw trial to draw.
var ErrNoSamples = errors.New("trial has no samples")

// TrialChart renders an HTML page with the force-time curve of res and a bar
// chart of its phase durations.
func TrialChart(w io.Writer, res realtime.TrialResult, title string) error {
	if res.Trial == nil || res.Trial.Len() == 0 {
		return ErrNoSamples
	}
	ss := res.Trial.Samples()
	stride := (len(ss) + maxChartPoints - 1) / maxChartPoints

	x := make([]string, 0, len(ss)/stride+1)
	total := make([]opts.LineData, 0, cap(x))
	left := make([]opts.LineData, 0, cap(x))
	right := make([]opts.LineData, 0, cap(x))
	t0 := ss[0].TimestampMs
	for i := 0; i < len(ss); i += stride {
		s := ss[i]
		x = append(x, fmt.Sprintf("%.3f", (s.TimestampMs-t0)/1000))
		total = append(total, opts.LineData{Value: s.Total})
		left = append(left, opts.LineData{Value: s.Left})
		right = append(right, opts.LineData{Value: s.Right})
	}

	subtitle := fmt.Sprintf("test=%s bw=%.0f N samples=%d", res.Test, res.BodyWeightN, len(ss))
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Force (N)", NameLocation: "middle", NameGap: 45}),
	)
	lineOpts := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	line.SetXAxis(x).
		AddSeries("total", total, lineOpts).
		AddSeries("left", left, lineOpts).
		AddSeries("right", right, lineOpts)

	phases := make([]string, 0, len(res.Segments))
	durations := make([]opts.BarData, 0, len(res.Segments))
	for _, seg := range res.Segments {
		phases = append(phases, seg.Phase.Label())
		durations = append(durations, opts.BarData{Value: seg.DurationMs})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Phase durations", Subtitle: fmt.Sprintf("detection confidence %.2f", res.Detection.Confidence)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(phases).
		AddSeries("duration", durations,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = title
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(line, bar)
	return page.Render(w)
}
