package samples

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSample_Derived(t *testing.T) {
	tests := []struct {
		name      string
		left      float64
		right     float64
		total     float64
		asymmetry float64
		stability float64
	}{
		{"balanced", 350, 350, 700, 0, 1},
		{"left heavy", 420, 280, 700, 0.2, 280.0 / 420.0},
		{"one side only", 700, 0, 700, 1, 0},
		{"unloaded", 0, 0, 0, 0, 0},
		{"negative drift", -5, 3, -2, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSample(10, tt.left, tt.right)
			assert.InDelta(t, tt.total, s.Total, 1e-9)
			assert.InDelta(t, tt.asymmetry, s.Asymmetry, 1e-9)
			assert.InDelta(t, tt.stability, s.Stability, 1e-9)
			assert.GreaterOrEqual(t, s.Asymmetry, 0.0)
			assert.LessOrEqual(t, s.Asymmetry, 1.0)
		})
	}
}

func TestCombinedCOP(t *testing.T) {
	s := NewSample(0, 300, 100).WithCOP(Point{X: -100, Y: 10}, Point{X: 100, Y: 30})
	p, ok := s.CombinedCOP()
	require.True(t, ok)
	assert.InDelta(t, -50, p.X, 1e-9)
	assert.InDelta(t, 15, p.Y, 1e-9)

	_, ok = NewSample(0, 300, 100).CombinedCOP()
	assert.False(t, ok, "no COP data")
}

func TestBuffer_EvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Push(NewSample(float64(i), 1, 1)))
	}
	assert.Equal(t, 3, b.Len())
	got := b.Snapshot()
	assert.Equal(t, []float64{2, 3, 4}, []float64{got[0].TimestampMs, got[1].TimestampMs, got[2].TimestampMs})

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.0, latest.TimestampMs)
}

func TestBuffer_RejectsOutOfOrder(t *testing.T) {
	b := NewBuffer(10)
	require.NoError(t, b.Push(NewSample(5, 1, 1)))
	err := b.Push(NewSample(5, 1, 1))
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	err = b.Push(NewSample(4, 1, 1))
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.Equal(t, 1, b.Len())
}

func TestBuffer_WindowAndSince(t *testing.T) {
	b := NewBufferForDuration(1, 1000)
	assert.Equal(t, 1000, b.Cap())
	for i := 0; i < 1500; i++ {
		require.NoError(t, b.Push(NewSample(float64(i), 350, 350)))
	}
	w := b.Window(100)
	require.Len(t, w, 101)
	assert.Equal(t, 1399.0, w[0].TimestampMs)
	assert.Equal(t, 1499.0, w[len(w)-1].TimestampMs)

	since := b.Since(1495)
	assert.Len(t, since, 4)

	assert.Len(t, b.Last(5000), 1000)
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Window(100))
}

func TestTrial_AppendAndComplete(t *testing.T) {
	tr := NewTrial(1000)
	require.NoError(t, tr.Append(NewSample(0, 1, 1)))
	require.NoError(t, tr.Append(NewSample(1, 1, 1)))
	assert.True(t, errors.Is(tr.Append(NewSample(1, 1, 1)), ErrOutOfOrder))

	tr.Complete()
	assert.True(t, errors.Is(tr.Append(NewSample(2, 1, 1)), ErrTrialComplete))
	assert.Equal(t, 2, tr.Len())
	assert.InDelta(t, 2.0, tr.DurationMs(), 1e-9)
	assert.Equal(t, 20, tr.MsToSamples(20))
}

func TestNewTrialFromSamples_Invalid(t *testing.T) {
	_, err := NewTrialFromSamples([]ForceSample{NewSample(2, 1, 1), NewSample(1, 1, 1)}, 1000)
	assert.True(t, errors.Is(err, ErrOutOfOrder))

	_, err = NewTrialFromSamples(nil, 0)
	assert.Error(t, err)
}

func TestMovingAverage(t *testing.T) {
	in := []float64{0, 0, 9, 0, 0}
	got := MovingAverage(in, 3)
	want := []float64{0, 3, 3, 3, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MovingAverage mismatch (-want +got):\n%s", diff)
	}

	// Even windows widen to stay centered.
	assert.Equal(t, MovingAverage(in, 3), MovingAverage(in, 2))
	// Window of one is the identity.
	assert.Equal(t, in, MovingAverage(in, 1))

	constant := []float64{700, 700, 700, 700, 700, 700}
	for _, v := range MovingAverage(constant, 5) {
		assert.InDelta(t, 700, v, 1e-9)
	}
}

func TestTrailingAverage(t *testing.T) {
	assert.InDelta(t, 4.5, TrailingAverage([]float64{1, 2, 4, 5}, 2), 1e-9)
	assert.InDelta(t, 3.0, TrailingAverage([]float64{1, 2, 4, 5}, 10), 1e-9)
	assert.Equal(t, 0.0, TrailingAverage(nil, 3))
}

func TestResample(t *testing.T) {
	in := []ForceSample{
		NewSample(0, 100, 100),
		NewSample(3, 400, 400),
		NewSample(4, 400, 400),
	}
	out, err := Resample(in, 1000)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.InDelta(t, 400, out[1].Total, 1e-9)
	assert.InDelta(t, 600, out[2].Total, 1e-9)
	assert.InDelta(t, 800, out[4].Total, 1e-9)
	assert.Equal(t, 1000.0, EstimateSampleRate(out))

	_, err = Resample(in, 0)
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	s, err := ParseLine(" 12.5, 351.2 ,348.8")
	require.NoError(t, err)
	assert.Equal(t, 12.5, s.TimestampMs)
	assert.InDelta(t, 700, s.Total, 1e-9)
	assert.False(t, s.HasCOP())

	s, err = ParseLine("1,300,100,-100,10,100,30")
	require.NoError(t, err)
	require.True(t, s.HasCOP())
	assert.Equal(t, Point{X: 100, Y: 30}, *s.RightCOP)

	for _, bad := range []string{"", "1,2", "1,2,x", "1,2,3,4"} {
		_, err := ParseLine(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	var in []ForceSample
	for i := 0; i < 50; i++ {
		in = append(in, NewSample(float64(i)*2, 350+float64(i), 350-float64(i)))
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRecording(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "t_ms,left,right\n"))

	tr, err := ReadRecording(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, tr.Len())
	assert.InDelta(t, 500, tr.SampleRate, 1e-9, "rate inferred from 2 ms spacing")
	assert.True(t, tr.IsComplete())
	assert.InDelta(t, in[10].Left, tr.At(10).Left, 1e-3)
}

func TestReadRecording_Errors(t *testing.T) {
	_, err := ReadRecording(strings.NewReader("# empty\n\n"), 1000)
	assert.Error(t, err)

	_, err = ReadRecording(strings.NewReader("t_ms,left,right\n0,1,1\n1,bad,1\n"), 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = ReadRecording(strings.NewReader("0,1,1\n"), 0)
	assert.Error(t, err, "single sample has no inferable rate")
}

func TestAsymmetryIndexBounds(t *testing.T) {
	for _, pair := range [][2]float64{{1000, -10}, {0, 0}, {-1, -1}, {5, 5000}} {
		a := AsymmetryIndex(pair[0], pair[1])
		if a < 0 || a > 1 || math.IsNaN(a) {
			t.Errorf("AsymmetryIndex(%v) = %f out of [0,1]", pair, a)
		}
	}
}
