package realtime

import (
	"errors"
	"time"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

var (
	// ErrClosed is returned by operations on a session that has ended.
	ErrClosed = errors.New("session closed")
	// ErrSourceClosed ends a session whose sample source stopped on its own.
	ErrSourceClosed = errors.New("sample source closed")
)

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting Status = "waiting_for_stability"
	StatusReady   Status = "ready"
	StatusInTrial Status = "in_trial"
	StatusClosed  Status = "closed"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further samples will be accepted.
func (s Status) Terminal() bool { return s == StatusClosed || s == StatusFailed }

// Severity grades a feedback message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Snapshot is the periodic phase and metrics view of the recent window.
type Snapshot struct {
	SessionID   string               `json:"session_id"`
	Time        time.Time            `json:"time"`
	TimestampMs float64              `json:"t_ms"`
	Status      Status               `json:"status"`
	Phase       phase.Phase          `json:"phase"`
	Test        classify.TestType    `json:"test,omitempty"`
	BodyWeightN float64              `json:"body_weight_n,omitempty"`
	ForceN      float64              `json:"force_n"`
	Asymmetry   float64              `json:"asymmetry"`
	Segments    []phase.PhaseSegment `json:"segments,omitempty"`
	Detection   phase.Detection      `json:"detection"`
	Metrics     metrics.MetricSet    `json:"metrics"`
	Trials      int                  `json:"trials"`
	Final       bool                 `json:"final,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Feedback is a short human-readable cue for the athlete or operator.
type Feedback struct {
	SessionID string      `json:"session_id"`
	Time      time.Time   `json:"time"`
	Phase     phase.Phase `json:"phase"`
	Severity  Severity    `json:"severity"`
	Message   string      `json:"message"`
}

// QualityFlag names one signal problem.
type QualityFlag string

const (
	FlagOutOfRange    QualityFlag = "out_of_range"
	FlagAsymmetry     QualityFlag = "asymmetry"
	FlagNegativeForce QualityFlag = "negative_force"
	FlagNoisy         QualityFlag = "noisy"
	FlagFlatSignal    QualityFlag = "flat_signal"
)

// QualityAssessment scores the recent raw signal in [0,1].
type QualityAssessment struct {
	SessionID string        `json:"session_id"`
	Time      time.Time     `json:"time"`
	Score     float64       `json:"score"`
	Flags     []QualityFlag `json:"flags,omitempty"`
	Asymmetry float64       `json:"asymmetry"`
	NoiseN    float64       `json:"noise_n"`
	SDN       float64       `json:"sd_n"`
	Samples   int           `json:"samples"`
}

// Has reports whether flag was raised.
func (q QualityAssessment) Has(flag QualityFlag) bool {
	for _, f := range q.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// TrialResult is handed to persistence once a trial completes.
type TrialResult struct {
	ID             string               `json:"id"`
	SessionID      string               `json:"session_id"`
	CompletedAt    time.Time            `json:"completed_at"`
	Reason         string               `json:"reason"`
	Test           classify.TestType    `json:"test"`
	Classification classify.Result      `json:"classification"`
	BodyWeightN    float64              `json:"body_weight_n"`
	Trial          *samples.Trial       `json:"-"`
	Segments       []phase.PhaseSegment `json:"segments"`
	Detection      phase.Detection      `json:"detection"`
	Metrics        metrics.MetricSet    `json:"metrics"`
	Quality        QualityAssessment    `json:"quality"`
}

// Sink receives a session's outputs. Errors are logged by the session and
// do not interrupt it.
type Sink interface {
	Snapshot(Snapshot) error
	Feedback(Feedback) error
	Quality(QualityAssessment) error
	Trial(TrialResult) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Snapshot(Snapshot) error         { return nil }
func (discard) Feedback(Feedback) error         { return nil }
func (discard) Quality(QualityAssessment) error { return nil }
func (discard) Trial(TrialResult) error         { return nil }

// CorrectionKind selects what a user correction overrides.
type CorrectionKind string

const (
	CorrectBodyWeight   CorrectionKind = "body_weight"
	CorrectTestType     CorrectionKind = "test_type"
	CorrectPhase        CorrectionKind = "phase"
	CorrectDiscardTrial CorrectionKind = "discard_trial"
)

// Correction is a manual override from the operator.
type Correction struct {
	Kind        CorrectionKind    `json:"kind"`
	BodyWeightN float64           `json:"body_weight_n,omitempty"`
	Test        classify.TestType `json:"test,omitempty"`
	Phase       phase.Phase       `json:"phase,omitempty"`
}
