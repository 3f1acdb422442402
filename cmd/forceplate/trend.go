package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/forceplate.report/internal/db"
	"github.com/banshee-data/forceplate.report/internal/forceplate/metrics"
	"github.com/banshee-data/forceplate.report/internal/report"
	"github.com/banshee-data/forceplate.report/internal/stats"
)

func runTrend(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("trend", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Database path (default from config)")
	athlete := fs.String("athlete", "", "Athlete ID (required)")
	metric := fs.String("metric", metrics.JumpHeight, "Metric name")
	swc := fs.String("swc", "", "SWC method: cohen, hopkins, cv or individual (default from config)")
	plotPath := fs.String("plot", "", "Write a PNG trend plot to this path")
	configPath := fs.String("config", "", "Tuning config JSON")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *athlete == "" {
		fs.Usage()
		return errors.New("-athlete is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	method := cfg.GetSWCMethod()
	if *swc != "" {
		if method, err = stats.ParseSWCMethod(*swc); err != nil {
			return err
		}
	}
	path := firstNonEmpty(*dbPath, cfg.GetDBPath())

	database, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	points, err := db.NewTrialStore(database).MetricHistory(*athlete, *metric)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no %s values stored for athlete %q", *metric, *athlete)
	}
	values := db.Values(points)

	p, err := report.BuildProgress(*metric, values, method)
	if err != nil {
		return err
	}

	if *plotPath != "" {
		f, err := os.Create(*plotPath)
		if err != nil {
			return err
		}
		if err := report.TrendPlot(f, p, values); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote trend plot to %s", *plotPath)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	return report.WriteProgress(stdout, p)
}
