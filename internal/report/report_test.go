package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
	"github.com/banshee-data/forceplate.report/internal/stats"
)

func init() { monitoring.SetLogger(nil) }

var improving = []float64{30, 31, 32, 33, 34, 35, 36, 40}

func TestBuildProgress(t *testing.T) {
	t.Run("full history", func(t *testing.T) {
		p, err := BuildProgress(metrics.JumpHeight, improving, stats.SWCHopkins)
		require.NoError(t, err)
		assert.True(t, p.HigherIsBetter)
		assert.Equal(t, len(improving), p.Summary.N)
		require.NotNil(t, p.Reliability)
		assert.True(t, p.Reliability.Approximate)
		require.NotNil(t, p.Trend)
		assert.Equal(t, stats.TrendImproving, p.Trend.Direction)
		assert.Greater(t, p.SWC, 0.0)
		assert.Equal(t, 40.0, p.Latest)
		assert.InDelta(t, 33.0, p.Baseline, 1e-9)
		require.NotNil(t, p.Change)
		assert.InDelta(t, 7.0, p.Change.Effect, 1e-9)
		assert.Greater(t, p.Change.Beneficial, p.Change.Harmful)
		assert.Empty(t, p.Notes)
	})

	t.Run("short history notes what is missing", func(t *testing.T) {
		p, err := BuildProgress(metrics.JumpHeight, []float64{30, 32}, stats.SWCCohen)
		require.NoError(t, err)
		assert.Nil(t, p.Reliability)
		assert.Nil(t, p.Trend)
		require.NotNil(t, p.Change, "a single previous value still compares against the SWC")
		assert.Len(t, p.Notes, 2)
		assert.Contains(t, p.Notes[0], "reliability")
		assert.Contains(t, p.Notes[1], "trend")
	})

	t.Run("lower is better", func(t *testing.T) {
		p, err := BuildProgress(metrics.ContactTime, []float64{260, 250, 245, 240, 230, 220}, stats.SWCHopkins)
		require.NoError(t, err)
		assert.False(t, p.HigherIsBetter)
		require.NotNil(t, p.Trend)
		assert.Equal(t, stats.TrendImproving, p.Trend.Direction)
		require.NotNil(t, p.Change)
		assert.Less(t, p.Change.Effect, 0.0)
		assert.Greater(t, p.Change.Beneficial, p.Change.Harmful)
	})

	t.Run("flat series has no change to judge", func(t *testing.T) {
		p, err := BuildProgress(metrics.PeakForce, []float64{1500, 1500, 1500}, stats.SWCHopkins)
		require.NoError(t, err)
		assert.Zero(t, p.SWC)
		assert.Nil(t, p.Change)
		assert.Contains(t, strings.Join(p.Notes, "\n"), "no smallest worthwhile change")
	})

	t.Run("single value", func(t *testing.T) {
		_, err := BuildProgress(metrics.JumpHeight, []float64{30}, stats.SWCHopkins)
		assert.ErrorIs(t, err, stats.ErrInsufficientData)
	})
}

func TestWriteProgress(t *testing.T) {
	p, err := BuildProgress(metrics.JumpHeight, improving, stats.SWCHopkins)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteProgress(&buf, p))
	out := buf.String()
	for _, want := range []string{
		"jump_height_cm (higher is better)",
		"trials",
		"icc",
		"trend",
		"improving",
		"swc",
		"hopkins",
		"change",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "note")
}

func TestTrendPlot(t *testing.T) {
	p, err := BuildProgress(metrics.JumpHeight, improving, stats.SWCHopkins)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, TrendPlot(&buf, p, improving))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "output is a PNG")

	buf.Reset()
	assert.ErrorIs(t, TrendPlot(&buf, Progress{Metric: metrics.JumpHeight}, nil), stats.ErrInsufficientData)
}

func TestTrialChart(t *testing.T) {
	res, err := realtime.Analyse(synth.CMJ(1000, 700).Trial(), realtime.AnalyseOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, TrialChart(&buf, res, "CMJ trial"))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "CMJ trial")
	assert.Contains(t, out, "Phase durations")
	assert.Contains(t, out, "Propulsion")

	assert.ErrorIs(t, TrialChart(&buf, realtime.TrialResult{}, "empty"), ErrNoSamples)
}
