package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/forceplate.report/internal/db"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
)

func simulate(t *testing.T, dir, test string) string {
	t.Helper()
	path := filepath.Join(dir, test+".csv")
	if err := runSimulate([]string{"-test", test, "-out", path}, io.Discard); err != nil {
		t.Fatalf("simulate %s: %v", test, err)
	}
	return path
}

func TestSimulateWritesRecording(t *testing.T) {
	var buf bytes.Buffer
	if err := runSimulate([]string{"-test", "imtp", "-bw", "800"}, &buf); err != nil {
		t.Fatalf("runSimulate: %v", err)
	}
	trial, err := samples.ReadRecording(&buf, 0)
	if err != nil {
		t.Fatalf("ReadRecording: %v", err)
	}
	if want := synth.IMTP(1000, 800).Trial().Len(); trial.Len() != want {
		t.Errorf("got %d samples, want %d", trial.Len(), want)
	}
}

func TestSimulateRejectsBadFlags(t *testing.T) {
	tests := [][]string{
		{"-test", "sprint"},
		{"-test", "auto"},
		{"-bw", "0"},
		{"-asymmetry", "1.5"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if err := runSimulate(args, io.Discard); err == nil {
				t.Errorf("runSimulate(%v) = nil, want error", args)
			}
		})
	}
}

func TestAnalyseStoreAndTrend(t *testing.T) {
	dir := t.TempDir()
	csv := simulate(t, dir, "cmj")
	dbPath := filepath.Join(dir, "forceplate.db")
	chart := filepath.Join(dir, "cmj.html")

	for i := 0; i < 3; i++ {
		var out bytes.Buffer
		args := []string{"-in", csv, "-db", dbPath, "-athlete", "a1", "-chart", chart}
		if err := runAnalyse(args, &out); err != nil {
			t.Fatalf("runAnalyse: %v", err)
		}
		if !strings.Contains(out.String(), "countermovement jump") {
			t.Errorf("summary missing test name:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "jump_height_cm") {
			t.Errorf("summary missing jump height:\n%s", out.String())
		}
	}
	if info, err := os.Stat(chart); err != nil || info.Size() == 0 {
		t.Fatalf("chart not written: %v", err)
	}

	plot := filepath.Join(dir, "trend.png")
	var out bytes.Buffer
	args := []string{"-db", dbPath, "-athlete", "a1", "-metric", "jump_height_cm", "-plot", plot}
	if err := runTrend(args, &out); err != nil {
		t.Fatalf("runTrend: %v", err)
	}
	if !strings.Contains(out.String(), "trials") || !strings.Contains(out.String(), "3") {
		t.Errorf("trend report missing trial count:\n%s", out.String())
	}
	png, err := os.ReadFile(plot)
	if err != nil {
		t.Fatalf("read plot: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("trend plot is not a PNG")
	}

	if err := runTrend([]string{"-db", dbPath, "-athlete", "nobody"}, io.Discard); err == nil {
		t.Error("expected an error for an athlete with no trials")
	}
}

func TestAnalyseFixedTestAndJSON(t *testing.T) {
	csv := simulate(t, t.TempDir(), "cmj")
	var out bytes.Buffer
	if err := runAnalyse([]string{"-in", csv, "-bw", "700", "-test", "sj", "-json"}, &out); err != nil {
		t.Fatalf("runAnalyse: %v", err)
	}
	if !strings.Contains(out.String(), `"test": "sj"`) {
		t.Errorf("expected fixed test in JSON output:\n%s", out.String())
	}
}

func TestAnalyseRequiredFlags(t *testing.T) {
	csv := simulate(t, t.TempDir(), "cmj")
	tests := []struct {
		name string
		args []string
	}{
		{"missing input", nil},
		{"db without athlete", []string{"-in", csv, "-db", filepath.Join(t.TempDir(), "x.db")}},
		{"unknown units", []string{"-in", csv, "-units", "stone"}},
		{"unknown test", []string{"-in", csv, "-test", "sprint"}},
		{"missing file", []string{"-in", filepath.Join(t.TempDir(), "nope.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runAnalyse(tt.args, io.Discard); err == nil {
				t.Errorf("runAnalyse(%v) = nil, want error", tt.args)
			}
		})
	}
}

func TestLiveRequiresPort(t *testing.T) {
	if err := runLive(nil); err == nil {
		t.Error("runLive without -port should fail")
	}
}

func TestLiveSimulatedSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "live.db")
	args := []string{"-port", "sim", "-sim-reps", "2", "-speed", "0", "-listen", "", "-db", dbPath, "-athlete", "a1", "-test", "cmj"}
	if err := runLive(args); err != nil {
		t.Fatalf("runLive: %v", err)
	}
	database, err := db.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer database.Close()
	ids, err := db.NewTrialStore(database).ListByAthlete("a1")
	if err != nil {
		t.Fatalf("ListByAthlete: %v", err)
	}
	if len(ids) == 0 {
		t.Error("live session stored no trials")
	}
}

func TestRepeat(t *testing.T) {
	ss := synth.Quiet(1000, 700, 10).Samples()
	got := repeat(ss, 3)
	if len(got) != 3*len(ss) {
		t.Fatalf("len = %d, want %d", len(got), 3*len(ss))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimestampMs <= got[i-1].TimestampMs {
			t.Fatalf("timestamps not increasing at %d: %v <= %v", i, got[i].TimestampMs, got[i-1].TimestampMs)
		}
	}
	if len(repeat(ss, 1)) != len(ss) {
		t.Error("repeat(ss, 1) should return ss unchanged")
	}
}

func TestSynthFor(t *testing.T) {
	for _, tt := range classify.TestTypes() {
		if _, err := synthFor(tt, 1000, 700); err != nil {
			t.Errorf("synthFor(%s): %v", tt, err)
		}
	}
	if _, err := synthFor(classify.Undetected, 1000, 700); err == nil {
		t.Error("synthFor(undetected) should fail")
	}
}
