package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
	"github.com/banshee-data/forceplate.report/internal/timeutil"
)

// Source produces samples in timestamp order until ctx is cancelled or the
// device goes away. Returning nil means the source ran out of data.
type Source interface {
	Run(ctx context.Context, out chan<- samples.ForceSample) error
}

type correctionRequest struct {
	c     Correction
	reply chan error
}

// Runner drives a Session from a Source. The goroutine inside Run is the
// only one that touches the session; other goroutines reach it through
// Apply.
type Runner struct {
	session     *Session
	source      Source
	clock       timeutil.Clock
	corrections chan correctionRequest
	done        chan struct{}
}

// NewRunner wires session to source, ticking on clock.
func NewRunner(session *Session, source Source, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	session.SetClock(clock)
	return &Runner{
		session:     session,
		source:      source,
		clock:       clock,
		corrections: make(chan correctionRequest),
		done:        make(chan struct{}),
	}
}

// Run processes samples, analysis ticks and feedback ticks until ctx is
// cancelled or the source stops. Cancellation closes the session and
// returns ctx.Err(). A source that stops ends the session in the failed
// state and Run returns the error.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan samples.ForceSample, 1024)
	srcErr := make(chan error, 1)
	go func() { srcErr <- r.source.Run(ctx, in) }()

	analysis := r.clock.NewTicker(r.session.cfg.AnalysisInterval)
	defer analysis.Stop()
	feedback := r.clock.NewTicker(r.session.cfg.FeedbackInterval)
	defer feedback.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.stop(ctx, in)
		case smp := <-in:
			r.push(smp)
		case now := <-analysis.C():
			r.session.AnalysisTick(now)
		case now := <-feedback.C():
			r.session.FeedbackTick(now)
		case req := <-r.corrections:
			req.reply <- r.session.Apply(req.c)
		case err := <-srcErr:
			if ctx.Err() != nil {
				return r.stop(ctx, in)
			}
			r.drain(in)
			if err == nil {
				err = ErrSourceClosed
			} else {
				err = fmt.Errorf("sample source: %w", err)
			}
			r.session.Fail(r.clock.Now(), err)
			return err
		}
	}
}

func (r *Runner) stop(ctx context.Context, in <-chan samples.ForceSample) error {
	r.drain(in)
	r.session.Close(r.clock.Now())
	return ctx.Err()
}

func (r *Runner) push(smp samples.ForceSample) {
	if err := r.session.Push(smp); err != nil {
		monitoring.Debugf("session %s: dropped sample at %.3f ms: %v", r.session.id, smp.TimestampMs, err)
	}
}

// drain pushes whatever the source already delivered.
func (r *Runner) drain(in <-chan samples.ForceSample) {
	for {
		select {
		case smp := <-in:
			r.push(smp)
		default:
			return
		}
	}
}

// Apply hands a correction to the session goroutine and waits for the
// result.
func (r *Runner) Apply(ctx context.Context, c Correction) error {
	req := correctionRequest{c: c, reply: make(chan error, 1)}
	select {
	case r.corrections <- req:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the driven session. Read its state only after Run has
// returned.
func (r *Runner) Session() *Session { return r.session }

// IsTerminal reports whether err came from a source failure rather than
// cancellation.
func IsTerminal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
