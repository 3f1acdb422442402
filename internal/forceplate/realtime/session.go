package realtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/forceplate.report/internal/forceplate/baseline"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
	"github.com/banshee-data/forceplate.report/internal/timeutil"
)

// ErrNoTrial is returned when discarding with no trial in progress.
var ErrNoTrial = errors.New("no trial in progress")

// Trial completion reasons.
const (
	ReasonSettled     = "returned to quiet standing"
	ReasonMaxDuration = "maximum trial duration"
	ReasonSessionEnd  = "session ended"
)

// Session owns every piece of mutable state for one live session. It is
// not safe for concurrent use: a single goroutine (normally a Runner)
// must make all calls.
type Session struct {
	id    string
	cfg   Config
	sink  Sink
	clock timeutil.Clock

	raw       *samples.Buffer
	stability *baseline.StabilityDetector
	onset     *baseline.OnsetDetector
	machine   *phase.Machine

	status   Status
	err      error
	bw       float64
	test     classify.TestType // operator choice; empty classifies each trial
	lastTest classify.TestType
	smoothed float64

	trial        *samples.Trial
	trialStartMs float64
	leftQuiet    bool
	moved        bool
	propulsed    bool

	outcomes []phase.TrialOutcome
	trials   int
	quality  QualityAssessment
	last     Snapshot
}

// NewSession creates a session. A nil sink discards output.
func NewSession(cfg Config, sink Sink) *Session {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = Discard
	}
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		sink:      sink,
		clock:     timeutil.RealClock{},
		raw:       samples.NewBufferForDuration(cfg.BufferSeconds, cfg.SampleRate),
		stability: baseline.NewStabilityDetector(cfg.Baseline),
		onset:     baseline.NewOnsetDetector(cfg.Baseline, 0),
		status:    StatusWaiting,
	}
	if cfg.Test != classify.Undetected {
		s.test = cfg.Test
	}
	s.machine = phase.NewMachine(s.rules())
	if cfg.BodyWeightN > 0 {
		s.stability.Override(cfg.BodyWeightN)
		s.setBodyWeight(cfg.BodyWeightN)
	}
	return s
}

// SetClock replaces the clock used to timestamp completed trials.
func (s *Session) SetClock(c timeutil.Clock) { s.clock = c }

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// Err returns the error that ended a failed session.
func (s *Session) Err() error { return s.err }

// BodyWeight returns the body weight once known.
func (s *Session) BodyWeight() (float64, bool) { return s.bw, s.bw > 0 }

// Phase returns the live phase.
func (s *Session) Phase() phase.Phase { return s.machine.Phase() }

// Trials returns how many trials have completed.
func (s *Session) Trials() int { return s.trials }

// Rules returns the live transition rules.
func (s *Session) Rules() phase.Rules { return s.machine.Rules() }

// activeTest is the protocol used for thresholds: the operator's choice,
// else the last detected test.
func (s *Session) activeTest() classify.TestType {
	if s.test != "" {
		return s.test
	}
	return s.lastTest
}

func (s *Session) thresholds() phase.Thresholds {
	return phase.Adaptive(s.activeTest(), s.cfg.Athlete, s.outcomes)
}

func (s *Session) rules() phase.Rules {
	return phase.NewRules(s.thresholds(), s.bw, s.cfg.SampleRate, true)
}

func (s *Session) setBodyWeight(bw float64) {
	s.bw = bw
	s.onset.SetBaseline(bw)
	s.machine.SetBodyWeight(bw)
	if s.status == StatusWaiting {
		s.status = StatusReady
	}
}

// Push ingests one sample. Samples must arrive in timestamp order.
func (s *Session) Push(smp samples.ForceSample) error {
	if s.status.Terminal() {
		return ErrClosed
	}
	if err := s.raw.Push(smp); err != nil {
		return err
	}
	w := s.cfg.SmoothingWindow
	s.smoothed = samples.TrailingAverage(samples.Totals(s.raw.Last(w)), w)

	if s.bw <= 0 {
		for _, ev := range s.stability.Update(smp) {
			s.handle(ev)
		}
		return nil
	}

	p, changed := s.machine.Update(s.smoothed)
	if changed {
		monitoring.Debugf("session %s: %s at %.0f ms", s.id, p, smp.TimestampMs)
	}

	if s.trial == nil {
		if s.onset.Update(smp) {
			s.startTrial()
		}
		return nil
	}
	if err := s.trial.Append(smp); err != nil {
		return err
	}
	switch p {
	case phase.QuietStanding:
	case phase.Propulsion, phase.Flight:
		s.propulsed = true
		s.leftQuiet = true
	default:
		s.leftQuiet = true
	}

	switch {
	case changed && p == phase.QuietStanding && s.leftQuiet:
		s.completeTrial(ReasonSettled)
	case smp.TimestampMs-s.trialStartMs >= s.cfg.MaxTrialMs:
		s.completeTrial(ReasonMaxDuration)
	}
	return nil
}

func (s *Session) handle(ev baseline.Event) {
	switch ev.Kind {
	case baseline.EventStabilityAchieved:
		monitoring.Logf("session %s: stable at %.0f ms (sd %.1f N)", s.id, ev.TimestampMs, ev.SDN)
	case baseline.EventBodyWeightDetected:
		if !s.plausibleBodyWeight(ev.BodyWeightN) {
			monitoring.Logf("session %s: rejected body weight %.1f N at %.0f ms", s.id, ev.BodyWeightN, ev.TimestampMs)
			s.stability.Reset()
			return
		}
		monitoring.Logf("session %s: body weight %.1f N at %.0f ms", s.id, ev.BodyWeightN, ev.TimestampMs)
		s.setBodyWeight(ev.BodyWeightN)
	}
}

// plausibleBodyWeight reports whether bw can be someone standing on the
// plate: above the empty-plate floor and inside the sensor range.
func (s *Session) plausibleBodyWeight(bw float64) bool {
	return bw > 0 && bw >= s.cfg.Baseline.MinLoadN && bw < s.cfg.Quality.MaxForceN
}

// startTrial opens a trial at the confirmed onset, seeded with the quiet
// lead-in still held in the raw buffer.
func (s *Session) startTrial() {
	onsetMs, _ := s.onset.Onset()
	t := samples.NewTrial(s.cfg.SampleRate)
	t.ID = uuid.NewString()
	for _, smp := range s.raw.Since(onsetMs - s.cfg.PreOnsetMs) {
		if err := t.Append(smp); err != nil {
			monitoring.Logf("session %s: seeding trial: %v", s.id, err)
			break
		}
	}
	s.trial = t
	s.trialStartMs = onsetMs
	s.status = StatusInTrial
	s.moved = true
	s.propulsed = false
	s.leftQuiet = s.machine.Phase() != phase.QuietStanding
	monitoring.Logf("session %s: onset at %.0f ms, trial %s started", s.id, onsetMs, t.ID)
}

func (s *Session) completeTrial(reason string) {
	t := s.trial
	s.trial = nil
	s.onset.Reset()
	s.moved, s.propulsed, s.leftQuiet = false, false, false
	if !s.status.Terminal() {
		s.status = StatusReady
	}
	t.Complete()

	res := s.analyseTrial(t, reason)
	s.trials++
	if res.Classification.Detected {
		s.lastTest = res.Classification.Test
	}
	if rpf, ok := res.Metrics.Get(metrics.RelativePeakForce); ok {
		s.outcomes = append(s.outcomes, phase.TrialOutcome{
			RelativePeakForce: rpf,
			Confidence:        res.Detection.Confidence,
		})
	}
	s.machine.SetRules(s.rules())

	monitoring.Logf("session %s: trial %s complete (%s): test=%s confidence=%.2f segments=%d",
		s.id, res.ID, reason, res.Test, res.Classification.Confidence, len(res.Segments))
	if err := s.sink.Trial(res); err != nil {
		monitoring.Logf("session %s: publish trial: %v", s.id, err)
	}
}

// analyseTrial runs the batch pipeline over a completed trial.
func (s *Session) analyseTrial(t *samples.Trial, reason string) TrialResult {
	res := analyse(t, s.bw, s.test, s.cfg.Athlete, s.outcomes)
	res.SessionID = s.id
	res.CompletedAt = s.clock.Now()
	res.Reason = reason
	res.Quality = s.quality
	return res
}

// snapshot re-segments the recent window and recomputes its metrics.
func (s *Session) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		Time:        now,
		Status:      s.status,
		Phase:       s.machine.Phase(),
		Test:        s.activeTest(),
		BodyWeightN: s.bw,
		ForceN:      s.smoothed,
		Trials:      s.trials,
		Metrics:     metrics.NewMetricSet(),
	}
	if latest, ok := s.raw.Latest(); ok {
		snap.TimestampMs = latest.TimestampMs
		snap.Asymmetry = latest.Asymmetry
	}
	if s.bw <= 0 {
		return snap
	}
	window := s.raw.Window(s.cfg.AnalysisWindowMs)
	if len(window) < 2 {
		return snap
	}
	t, err := samples.NewTrialFromSamples(window, s.cfg.SampleRate)
	if err != nil {
		monitoring.Logf("session %s: analysis window: %v", s.id, err)
		return snap
	}
	snap.Segments = phase.Segment(t, s.bw, snap.Test, s.thresholds())
	snap.Detection = phase.Assess(snap.Segments)
	snap.Metrics = metrics.Compute(metrics.Input{
		Trial:       t,
		BodyWeightN: s.bw,
		Test:        snap.Test,
		Segments:    snap.Segments,
	})
	return snap
}

func (s *Session) assess(now time.Time) QualityAssessment {
	q := AssessQuality(s.raw.Window(s.cfg.Quality.WindowMs), s.cfg.Quality, s.moved, s.propulsed)
	q.SessionID = s.id
	q.Time = now
	s.quality = q
	return q
}

func (s *Session) feedback(now time.Time) Feedback {
	sev, msg := feedbackFor(s.status, s.machine.Phase(), s.stability.Stable(), s.quality)
	return Feedback{SessionID: s.id, Time: now, Phase: s.machine.Phase(), Severity: sev, Message: msg}
}

// AnalysisTick re-runs phase detection and metrics over the recent window
// and publishes the snapshot with a fresh quality assessment.
func (s *Session) AnalysisTick(now time.Time) (Snapshot, error) {
	if s.status.Terminal() {
		return s.last, ErrClosed
	}
	snap := s.snapshot(now)
	q := s.assess(now)
	s.last = snap
	s.publishSnapshot(snap, q)
	return snap, nil
}

// FeedbackTick produces the feedback message for the current phase and
// recent quality flags.
func (s *Session) FeedbackTick(now time.Time) (Feedback, error) {
	if s.status.Terminal() {
		return Feedback{}, ErrClosed
	}
	s.assess(now)
	f := s.feedback(now)
	if err := s.sink.Feedback(f); err != nil {
		monitoring.Logf("session %s: publish feedback: %v", s.id, err)
	}
	return f, nil
}

func (s *Session) publishSnapshot(snap Snapshot, q QualityAssessment) {
	if err := s.sink.Snapshot(snap); err != nil {
		monitoring.Logf("session %s: publish snapshot: %v", s.id, err)
	}
	if err := s.sink.Quality(q); err != nil {
		monitoring.Logf("session %s: publish quality: %v", s.id, err)
	}
}

// Apply accepts an operator correction. Only the state the correction
// names is changed.
func (s *Session) Apply(c Correction) error {
	if s.status.Terminal() {
		return ErrClosed
	}
	switch c.Kind {
	case CorrectBodyWeight:
		if c.BodyWeightN <= 0 {
			return fmt.Errorf("body weight must be positive, got %.1f", c.BodyWeightN)
		}
		s.stability.Override(c.BodyWeightN)
		s.setBodyWeight(c.BodyWeightN)
	case CorrectTestType:
		test, err := classify.ParseTestType(string(c.Test))
		if err != nil {
			return err
		}
		s.test = ""
		if test != classify.Undetected {
			s.test = test
		}
		s.machine.SetRules(s.rules())
	case CorrectPhase:
		if !c.Phase.Valid() {
			return fmt.Errorf("unknown phase %q", c.Phase)
		}
		s.machine.Force(c.Phase)
	case CorrectDiscardTrial:
		if s.trial == nil {
			return ErrNoTrial
		}
		monitoring.Logf("session %s: trial %s discarded", s.id, s.trial.ID)
		s.trial = nil
		s.onset.Reset()
		s.machine.Reset()
		s.moved, s.propulsed, s.leftQuiet = false, false, false
		s.status = StatusReady
	default:
		return fmt.Errorf("unknown correction %q", c.Kind)
	}
	monitoring.Logf("session %s: applied %s correction", s.id, c.Kind)
	return nil
}

// Close ends the session: any trial in progress is completed and a final
// snapshot, quality assessment and feedback message are published.
func (s *Session) Close(now time.Time) (Snapshot, error) {
	if s.status.Terminal() {
		return s.last, ErrClosed
	}
	return s.finish(now, StatusClosed, nil), nil
}

// Fail ends the session in the failed state carrying err. Results already
// produced are kept and the in-flight trial is completed as on Close.
func (s *Session) Fail(now time.Time, err error) Snapshot {
	if s.status.Terminal() {
		return s.last
	}
	return s.finish(now, StatusFailed, err)
}

func (s *Session) finish(now time.Time, final Status, err error) Snapshot {
	s.status = final
	s.err = err
	if s.trial != nil {
		s.completeTrial(ReasonSessionEnd)
	}

	snap := s.snapshot(now)
	snap.Final = true
	if err != nil {
		snap.Error = err.Error()
	}
	q := s.assess(now)
	s.last = snap
	s.publishSnapshot(snap, q)
	if ferr := s.sink.Feedback(s.feedback(now)); ferr != nil {
		monitoring.Logf("session %s: publish feedback: %v", s.id, ferr)
	}
	if err != nil {
		monitoring.Logf("session %s: failed after %d trials: %v", s.id, s.trials, err)
	} else {
		monitoring.Logf("session %s: closed after %d trials", s.id, s.trials)
	}
	return snap
}
