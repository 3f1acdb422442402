// Package publish fans live session output out to MQTT brokers and
// websocket dashboards, and carries operator corrections back in.
package publish

import (
	"context"
	"errors"

	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
)

// Message types, used as MQTT topic suffixes and websocket envelope types.
const (
	TypeSnapshot   = "snapshot"
	TypeFeedback   = "feedback"
	TypeQuality    = "quality"
	TypeTrial      = "trial"
	TypeCorrection = "correction"
	TypeAck        = "ack"
	TypeError      = "error"
)

// Publisher is a realtime.Sink that holds resources.
type Publisher interface {
	realtime.Sink
	Close() error
}

// ApplyFunc hands a correction to the running session. Runner.Apply
// satisfies it.
type ApplyFunc func(context.Context, realtime.Correction) error

// Envelope wraps every websocket message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Multi sends each output to every publisher. All publishers are tried;
// their errors are joined.
type Multi []realtime.Sink

func (m Multi) Snapshot(s realtime.Snapshot) error {
	return m.each(func(p realtime.Sink) error { return p.Snapshot(s) })
}

func (m Multi) Feedback(f realtime.Feedback) error {
	return m.each(func(p realtime.Sink) error { return p.Feedback(f) })
}

func (m Multi) Quality(q realtime.QualityAssessment) error {
	return m.each(func(p realtime.Sink) error { return p.Quality(q) })
}

func (m Multi) Trial(t realtime.TrialResult) error {
	return m.each(func(p realtime.Sink) error { return p.Trial(t) })
}

// Close closes every member that has a Close method.
func (m Multi) Close() error {
	return m.each(func(p realtime.Sink) error {
		if c, ok := p.(interface{ Close() error }); ok {
			return c.Close()
		}
		return nil
	})
}

func (m Multi) each(f func(realtime.Sink) error) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := f(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
