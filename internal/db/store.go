package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/forceplate/phase"
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

// ErrNotFound is returned when a trial ID has no row.
var ErrNotFound = errors.New("not found")

// SessionRecord is one live or batch session.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	AthleteID string    `json:"athlete_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
}

// TrialRecord is a completed trial attributed to an athlete.
type TrialRecord struct {
	AthleteID string
	Result    realtime.TrialResult
}

// StoredTrial is a trial as read back from the database.
type StoredTrial struct {
	TrialID                  string               `json:"trial_id"`
	SessionID                string               `json:"session_id,omitempty"`
	AthleteID                string               `json:"athlete_id"`
	CompletedAt              time.Time            `json:"completed_at"`
	Reason                   string               `json:"reason"`
	Test                     classify.TestType    `json:"test"`
	DetectedTest             classify.TestType    `json:"detected_test"`
	ClassificationConfidence float64              `json:"classification_confidence"`
	BodyWeightN              float64              `json:"body_weight_n"`
	SampleRateHz             float64              `json:"sample_rate_hz"`
	SampleCount              int                  `json:"sample_count"`
	DetectionConfidence      float64              `json:"detection_confidence"`
	DetectionValid           bool                 `json:"detection_valid"`
	QualityScore             float64              `json:"quality_score"`
	Segments                 []phase.PhaseSegment `json:"segments"`
	Metrics                  metrics.MetricSet    `json:"metrics"`
	samplesCSV               string
}

// Trial parses the stored raw samples back into a trial.
func (t *StoredTrial) Trial() (*samples.Trial, error) {
	if t.samplesCSV == "" {
		return nil, fmt.Errorf("trial %s has no stored samples", t.TrialID)
	}
	tr, err := samples.ReadRecording(strings.NewReader(t.samplesCSV), t.SampleRateHz)
	if err != nil {
		return nil, err
	}
	tr.ID = t.TrialID
	return tr, nil
}

// MetricPoint is one value in an athlete's history.
type MetricPoint struct {
	TrialID     string            `json:"trial_id"`
	CompletedAt time.Time         `json:"completed_at"`
	Test        classify.TestType `json:"test"`
	Value       float64           `json:"value"`
}

// TrialStore provides persistence for sessions and trials.
type TrialStore struct {
	db *DB
}

// NewTrialStore creates a new TrialStore.
func NewTrialStore(db *DB) *TrialStore {
	return &TrialStore{db: db}
}

// EnsureSession inserts rec unless a row with its ID exists. An empty
// SessionID is filled with a new UUID.
func (s *TrialStore) EnsureSession(rec *SessionRecord) error {
	if rec.SessionID == "" {
		rec.SessionID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO sessions (session_id, athlete_id, source, started_at)
		VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.AthleteID, rec.Source, rec.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Insert persists one completed trial with its segments and metric set in
// a single transaction. A trial without an ID gets a new UUID.
func (s *TrialStore) Insert(rec TrialRecord) (string, error) {
	res := rec.Result
	if rec.AthleteID == "" {
		return "", errors.New("trial record needs an athlete ID")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now()
	}

	var (
		rate      float64
		count     int
		csv       sql.NullString
		sessionID sql.NullString
	)
	if res.Trial != nil {
		rate, count = res.Trial.SampleRate, res.Trial.Len()
		var b strings.Builder
		if err := samples.WriteRecording(&b, res.Trial.Samples()); err != nil {
			return "", fmt.Errorf("encode samples: %w", err)
		}
		csv = sql.NullString{String: b.String(), Valid: true}
	}
	if res.SessionID != "" {
		sessionID = sql.NullString{String: res.SessionID, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if sessionID.Valid {
		_, err = tx.Exec(`
			INSERT OR IGNORE INTO sessions (session_id, athlete_id, started_at)
			VALUES (?, ?, ?)`,
			res.SessionID, rec.AthleteID, res.CompletedAt.UnixNano())
		if err != nil {
			return "", fmt.Errorf("insert session: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO trials (
			trial_id, session_id, athlete_id, completed_at, reason,
			test_type, detected_test, classification_confidence, body_weight_n,
			sample_rate_hz, sample_count, detection_confidence, detection_valid,
			quality_score, samples_csv
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, sessionID, rec.AthleteID, res.CompletedAt.UnixNano(), res.Reason,
		string(res.Test), string(res.Classification.Test), res.Classification.Confidence, res.BodyWeightN,
		rate, count, res.Detection.Confidence, res.Detection.Valid,
		res.Quality.Score, csv,
	)
	if err != nil {
		return "", fmt.Errorf("insert trial: %w", err)
	}

	for i, seg := range res.Segments {
		_, err := tx.Exec(`
			INSERT INTO phase_segments (
				trial_id, seq, phase, start_index, end_index, duration_ms,
				peak_force_n, avg_force_n, quality, band
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, i, string(seg.Phase), seg.Start, seg.End, seg.DurationMs,
			seg.PeakForce, seg.AvgForce, seg.Quality, string(seg.Band),
		)
		if err != nil {
			return "", fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	for name, v := range res.Metrics.Values {
		if _, err := tx.Exec(`INSERT INTO trial_metrics (trial_id, name, value) VALUES (?, ?, ?)`, res.ID, name, v); err != nil {
			return "", fmt.Errorf("insert metric %s: %w", name, err)
		}
	}
	for name, reason := range res.Metrics.Unavailable {
		if _, err := tx.Exec(`INSERT INTO trial_metrics (trial_id, name, unavailable) VALUES (?, ?, ?)`, res.ID, name, reason); err != nil {
			return "", fmt.Errorf("insert metric %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit trial: %w", err)
	}
	return res.ID, nil
}

// Get returns a single trial with its segments and metrics.
func (s *TrialStore) Get(trialID string) (*StoredTrial, error) {
	row := s.db.QueryRow(`
		SELECT trial_id, session_id, athlete_id, completed_at, reason,
		       test_type, detected_test, classification_confidence, body_weight_n,
		       sample_rate_hz, sample_count, detection_confidence, detection_valid,
		       quality_score, samples_csv
		FROM trials
		WHERE trial_id = ?`, trialID)

	var (
		t              StoredTrial
		sessionID, csv sql.NullString
		completedAt    int64
		test, detected string
	)
	err := row.Scan(
		&t.TrialID, &sessionID, &t.AthleteID, &completedAt, &t.Reason,
		&test, &detected, &t.ClassificationConfidence, &t.BodyWeightN,
		&t.SampleRateHz, &t.SampleCount, &t.DetectionConfidence, &t.DetectionValid,
		&t.QualityScore, &csv,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %s: %w", trialID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan trial: %w", err)
	}
	t.SessionID = sessionID.String
	t.samplesCSV = csv.String
	t.CompletedAt = time.Unix(0, completedAt)
	t.Test = classify.TestType(test)
	t.DetectedTest = classify.TestType(detected)

	if t.Segments, err = s.segments(trialID); err != nil {
		return nil, err
	}
	if t.Metrics, err = s.metricSet(trialID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TrialStore) segments(trialID string) ([]phase.PhaseSegment, error) {
	rows, err := s.db.Query(`
		SELECT phase, start_index, end_index, duration_ms, peak_force_n, avg_force_n, quality, band
		FROM phase_segments
		WHERE trial_id = ?
		ORDER BY seq`, trialID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segs []phase.PhaseSegment
	for rows.Next() {
		var seg phase.PhaseSegment
		var p, band string
		if err := rows.Scan(&p, &seg.Start, &seg.End, &seg.DurationMs, &seg.PeakForce, &seg.AvgForce, &seg.Quality, &band); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Phase = phase.Phase(p)
		seg.Band = phase.QualityBand(band)
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

func (s *TrialStore) metricSet(trialID string) (metrics.MetricSet, error) {
	ms := metrics.NewMetricSet()
	rows, err := s.db.Query(`SELECT name, value, unavailable FROM trial_metrics WHERE trial_id = ?`, trialID)
	if err != nil {
		return ms, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value sql.NullFloat64
		var reason sql.NullString
		if err := rows.Scan(&name, &value, &reason); err != nil {
			return ms, fmt.Errorf("scan metric: %w", err)
		}
		if value.Valid {
			ms.Values[name] = value.Float64
		} else {
			ms.Unavailable[name] = reason.String
		}
	}
	return ms, rows.Err()
}

// ListByAthlete returns the athlete's trial IDs, oldest first.
func (s *TrialStore) ListByAthlete(athleteID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT trial_id FROM trials
		WHERE athlete_id = ?
		ORDER BY completed_at, trial_id`, athleteID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MetricHistory returns every recorded value of metric for the athlete,
// oldest first. Trials where the metric was unavailable are skipped.
func (s *TrialStore) MetricHistory(athleteID, metric string) ([]MetricPoint, error) {
	rows, err := s.db.Query(`
		SELECT t.trial_id, t.completed_at, t.test_type, m.value
		FROM trial_metrics m
		JOIN trials t ON t.trial_id = m.trial_id
		WHERE t.athlete_id = ? AND m.name = ? AND m.value IS NOT NULL
		ORDER BY t.completed_at, t.trial_id`, athleteID, metric)
	if err != nil {
		return nil, fmt.Errorf("query metric history: %w", err)
	}
	defer rows.Close()

	var points []MetricPoint
	for rows.Next() {
		var p MetricPoint
		var completedAt int64
		var test string
		if err := rows.Scan(&p.TrialID, &completedAt, &test, &p.Value); err != nil {
			return nil, fmt.Errorf("scan metric point: %w", err)
		}
		p.CompletedAt = time.Unix(0, completedAt)
		p.Test = classify.TestType(test)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Values extracts the values of points in order.
func Values(points []MetricPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
