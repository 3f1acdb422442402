package db

import (
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

// Recorder is a realtime.Sink that persists completed trials for one
// athlete and ignores the live stream.
type Recorder struct {
	realtime.Sink
	store     *TrialStore
	athleteID string
}

// NewRecorder attributes every trial it receives to athleteID.
func NewRecorder(store *TrialStore, athleteID string) *Recorder {
	return &Recorder{Sink: realtime.Discard, store: store, athleteID: athleteID}
}

func (r *Recorder) Trial(t realtime.TrialResult) error {
	id, err := r.store.Insert(TrialRecord{AthleteID: r.athleteID, Result: t})
	if err != nil {
		return err
	}
	monitoring.Logf("stored trial %s for %s (%s)", id, r.athleteID, t.Test)
	return nil
}
