// Package ingest turns a line-oriented force-plate stream (a serial port, a
// replayed recording, any io.ReadCloser) into samples for a live session.
package ingest

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

var (
	ErrWriteFailed  = errors.New("failed to write to port")
	ErrReadOnlyPort = errors.New("port does not accept commands")
)

// Stats counts what a LineSource has seen since it was created.
type Stats struct {
	Lines     uint64    `json:"lines"`
	Samples   uint64    `json:"samples"`
	Malformed uint64    `json:"malformed"`
	LastError string    `json:"last_error,omitempty"`
	LastLine  time.Time `json:"last_line"`
}

// LineSource reads one sample per line and implements realtime.Source.
// Raw lines are also fanned out to subscribers for live tailing.
type LineSource struct {
	name string
	port Port

	lines     atomic.Uint64
	parsed    atomic.Uint64
	malformed atomic.Uint64

	mu          sync.Mutex
	lastErr     string
	lastLine    time.Time
	subscribers map[string]chan string
	closing     bool

	commandMu sync.Mutex
}

// NewLineSource wraps port. name labels log lines and the debug page.
func NewLineSource(name string, port Port) *LineSource {
	return &LineSource{
		name:        name,
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Name returns the label given at construction.
func (s *LineSource) Name() string { return s.name }

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving every raw line. Slow subscribers
// miss lines rather than stall ingestion.
func (s *LineSource) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets the channel registered under id.
func (s *LineSource) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand writes a newline-terminated command, e.g. a tare request.
func (s *LineSource) SendCommand(command string) error {
	w, ok := s.port.(io.Writer)
	if !ok {
		return ErrReadOnlyPort
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := w.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Run reads lines until ctx is cancelled or the port reaches EOF. Blank
// lines and '#' comments are ignored; malformed lines are logged and
// skipped. EOF returns nil. Cancellation closes the port so a blocked read
// returns, and Run returns ctx.Err().
func (s *LineSource) Run(ctx context.Context, out chan<- samples.ForceSample) error {
	stop := context.AfterFunc(ctx, func() { s.port.Close() })
	defer stop()

	scan := bufio.NewScanner(s.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.record(line)

		smp, err := samples.ParseLine(line)
		if err != nil {
			s.malformed.Add(1)
			s.setErr(err)
			monitoring.Logf("ingest %s: skipping line: %v", s.name, err)
			continue
		}
		s.parsed.Add(1)

		select {
		case out <- smp:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scan.Err(); err != nil {
		s.setErr(err)
		return fmt.Errorf("read %s: %w", s.name, err)
	}
	return nil
}

func (s *LineSource) record(line string) {
	s.lines.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLine = time.Now()
	if s.closing {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *LineSource) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Stats returns a copy of the counters.
func (s *LineSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Lines:     s.lines.Load(),
		Samples:   s.parsed.Load(),
		Malformed: s.malformed.Load(),
		LastError: s.lastErr,
		LastLine:  s.lastLine,
	}
}

// Close closes every subscriber channel and the port.
func (s *LineSource) Close() error {
	s.mu.Lock()
	s.closing = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	return s.port.Close()
}
