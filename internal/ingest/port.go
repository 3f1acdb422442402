package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// Port is the minimal surface LineSource needs from a device. Writes are
// optional: a Port that is only an io.ReadCloser cannot take commands.
type Port interface {
	io.ReadCloser
}

// OpenSerial opens the amplifier at path and wraps it in a LineSource.
func OpenSerial(path string, opts PortOptions) (*LineSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewLineSource(path, port), nil
}

// ReplayPort streams recorded samples as serial lines at their recorded
// pace. It stands in for hardware when rehearsing a live session.
type ReplayPort struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	cancel context.CancelFunc
}

// NewReplayPort starts writing ss. speed scales playback: 1 is real time,
// 0 writes as fast as the reader accepts.
func NewReplayPort(ss []samples.ForceSample, speed float64) *ReplayPort {
	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	p := &ReplayPort{r: r, w: w, cancel: cancel}

	go func() {
		defer w.Close()
		var prev float64
		for i, s := range ss {
			if speed > 0 && i > 0 {
				d := time.Duration((s.TimestampMs - prev) / speed * float64(time.Millisecond))
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
			}
			prev = s.TimestampMs
			if _, err := io.WriteString(w, samples.FormatLine(s)+"\n"); err != nil {
				return
			}
		}
	}()
	return p
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write discards commands; a recording cannot be tared.
func (p *ReplayPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *ReplayPort) Close() error {
	p.cancel()
	return p.r.Close()
}
