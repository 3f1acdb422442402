package samples

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseLine parses one recording or serial line of the form
//
//	t_ms,left,right[,left_x,left_y,right_x,right_y]
//
// Whitespace around fields is ignored.
func ParseLine(line string) (ForceSample, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != 3 && len(segments) != 7 {
		return ForceSample{}, fmt.Errorf("invalid sample line %q: expected 3 or 7 fields, got %d", line, len(segments))
	}

	vals := make([]float64, len(segments))
	for i, seg := range segments {
		v, err := strconv.ParseFloat(strings.TrimSpace(seg), 64)
		if err != nil {
			return ForceSample{}, fmt.Errorf("failed to parse field %d of %q: %w", i, line, err)
		}
		vals[i] = v
	}

	s := NewSample(vals[0], vals[1], vals[2])
	if len(vals) == 7 {
		s = s.WithCOP(Point{X: vals[3], Y: vals[4]}, Point{X: vals[5], Y: vals[6]})
	}
	return s, nil
}

// FormatLine renders s in the ParseLine format.
func FormatLine(s ForceSample) string {
	line := fmt.Sprintf("%.3f,%.3f,%.3f", s.TimestampMs, s.Left, s.Right)
	if s.HasCOP() {
		line += fmt.Sprintf(",%.3f,%.3f,%.3f,%.3f", s.LeftCOP.X, s.LeftCOP.Y, s.RightCOP.X, s.RightCOP.Y)
	}
	return line
}

// ReadRecording reads a CSV recording into a completed trial. Blank lines,
// '#' comments and a header row are skipped. When sampleRate is 0 the rate is
// inferred from the timestamps.
func ReadRecording(r io.Reader, sampleRate float64) (*Trial, error) {
	var ss []ForceSample
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if lineNo == 1 && isHeader(line) {
			continue
		}
		s, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ss = append(ss, s)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(ss) == 0 {
		return nil, fmt.Errorf("recording contains no samples")
	}

	if sampleRate <= 0 {
		sampleRate = EstimateSampleRate(ss)
		if sampleRate <= 0 {
			return nil, fmt.Errorf("cannot infer sample rate from %d samples", len(ss))
		}
	}
	return NewTrialFromSamples(ss, sampleRate)
}

// WriteRecording writes samples in the ParseLine format with a header row.
func WriteRecording(w io.Writer, ss []ForceSample) error {
	bw := bufio.NewWriter(w)
	header := "t_ms,left,right"
	if len(ss) > 0 && ss[0].HasCOP() {
		header += ",left_x,left_y,right_x,right_y"
	}
	if _, err := fmt.Fprintln(bw, header); err != nil {
		return err
	}
	for _, s := range ss {
		if _, err := fmt.Fprintln(bw, FormatLine(s)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func isHeader(line string) bool {
	first := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
	_, err := strconv.ParseFloat(first, 64)
	return err != nil
}
