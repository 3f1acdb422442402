package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/banshee-data/forceplate.report/internal/db"
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/report"
	"github.com/banshee-data/forceplate.report/internal/units"
)

func runAnalyse(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyse", flag.ContinueOnError)
	in := fs.String("in", "", "CSV recording to analyse (required)")
	rate := fs.Float64("rate", 0, "Sample rate in Hz (0 infers it from the timestamps)")
	bw := fs.Float64("bw", 0, "Body weight in N (0 detects it from quiet standing)")
	test := fs.String("test", "", "Test type: cmj, sj, dj, imtp or auto (default from config)")
	chart := fs.String("chart", "", "Write an HTML force-time chart to this path")
	dbPath := fs.String("db", "", "Store the trial in this database")
	athlete := fs.String("athlete", "", "Athlete ID for the stored trial")
	configPath := fs.String("config", "", "Tuning config JSON")
	forceUnits := fs.String("units", units.Newton, "Force units for the summary: "+units.GetValidUnitsString())
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *in == "" {
		fs.Usage()
		return errors.New("-in is required")
	}
	if *dbPath != "" && *athlete == "" {
		return errors.New("-athlete is required with -db")
	}
	if !units.IsValidForce(*forceUnits) {
		return fmt.Errorf("invalid -units %q (valid: %s)", *forceUnits, units.GetValidUnitsString())
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	tt, err := testFlag(*test, cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	trial, err := samples.ReadRecording(f, *rate)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	res, err := realtime.Analyse(trial, realtime.AnalyseOptions{
		BodyWeightN: *bw,
		Test:        tt,
		Athlete:     cfg.GetAthlete(),
		Baseline:    cfg.BaselineConfig(),
	})
	if err != nil {
		return err
	}
	res.Reason = "batch"

	if *chart != "" {
		if err := writeChart(*chart, res, *in); err != nil {
			return err
		}
		log.Printf("wrote chart to %s", *chart)
	}

	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		id, err := db.NewTrialStore(database).Insert(db.TrialRecord{AthleteID: *athlete, Result: res})
		if err != nil {
			return err
		}
		res.ID = id
		log.Printf("stored trial %s for %s", id, *athlete)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeSummary(stdout, res, *forceUnits)
}

func writeChart(path string, res realtime.TrialResult, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.TrialChart(f, res, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeSummary prints the classification, phases and metrics of res.
func writeSummary(w io.Writer, res realtime.TrialResult, forceUnits string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "test\t%s (%s)\n", res.Test, res.Test.String())
	fmt.Fprintf(tw, "classified as\t%s (confidence %.2f)\n", res.Classification.Test, res.Classification.Confidence)
	fmt.Fprintf(tw, "body weight\t%.1f %s (%.1f kg)\n",
		units.ConvertForce(res.BodyWeightN, forceUnits), forceUnits, units.MassKg(res.BodyWeightN))
	fmt.Fprintf(tw, "detection\tconfidence %.2f valid=%t band=%s\n", res.Detection.Confidence, res.Detection.Valid, res.Detection.Band)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "phase\tstart\tend\tduration ms\tpeak\tquality")
	for _, s := range res.Segments {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\t%.1f\t%.2f (%s)\n",
			s.Phase, s.Start, s.End, s.DurationMs, units.ConvertForce(s.PeakForce, forceUnits), s.Quality, s.Band)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "metric\tvalue")
	for _, name := range res.Metrics.Names() {
		fmt.Fprintf(tw, "%s\t%.3f\n", name, res.Metrics.Values[name])
	}
	reasons := make([]string, 0, len(res.Metrics.Unavailable))
	for name := range res.Metrics.Unavailable {
		reasons = append(reasons, name)
	}
	slices.Sort(reasons)
	for _, name := range reasons {
		fmt.Fprintf(tw, "%s\tunavailable: %s\n", name, res.Metrics.Unavailable[name])
	}
	return tw.Flush()
}
