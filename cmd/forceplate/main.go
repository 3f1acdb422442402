// Command forceplate analyses force-plate recordings, runs live sessions
// from a serial plate and reports an athlete's progress over time.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/forceplate.report/internal/config"
	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
	"github.com/banshee-data/forceplate.report/internal/version"
)

var verbose = flag.Bool("v", false, "Log per-tick diagnostics")

func main() {
	flag.Usage = printUsage
	flag.Parse()
	monitoring.SetVerbose(*verbose)

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "analyse", "analyze":
		err = runAnalyse(args, os.Stdout)
	case "live":
		err = runLive(args)
	case "simulate":
		err = runSimulate(args, os.Stdout)
	case "trend":
		err = runTrend(args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage() {
	fmt.Println(`forceplate - force-plate signal processing and athlete statistics

Usage: forceplate [-v] <command> [options]

Commands:
  analyse    Analyse a recorded trial (CSV) and optionally store it
  live       Run a real-time session from a serial plate or a simulated one
  simulate   Write a synthetic recording for a test type
  trend      Report reliability, trend and SWC for one metric
  version    Show build information
  help       Show this help message

Examples:
  forceplate simulate -test cmj -bw 700 -out cmj.csv
  forceplate analyse -in cmj.csv -chart cmj.html -db forceplate.db -athlete a1
  forceplate live -port /dev/ttyUSB0 -mqtt tcp://localhost:1883 -db forceplate.db -athlete a1
  forceplate trend -db forceplate.db -athlete a1 -metric jump_height_cm -plot trend.png

Run 'forceplate <command> -h' for the options of a command.`)
}

// loadConfig reads the tuning file at path, or returns the built-in
// defaults when path is empty.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded tuning config from %s", path)
	return cfg, nil
}

// testFlag resolves a -test value, falling back to the configured test
// type when the flag was left empty.
func testFlag(value string, cfg *config.TuningConfig) (classify.TestType, error) {
	if value == "" {
		return cfg.GetTestType(), nil
	}
	return classify.ParseTestType(value)
}

// synthFor returns the synthetic trace for test.
func synthFor(test classify.TestType, rate, bodyWeightN float64) (*synth.Builder, error) {
	switch test {
	case classify.CMJ:
		return synth.CMJ(rate, bodyWeightN), nil
	case classify.SJ:
		return synth.SquatJump(rate, bodyWeightN), nil
	case classify.DJ:
		return synth.DropJump(rate, bodyWeightN), nil
	case classify.IMTP:
		return synth.IMTP(rate, bodyWeightN), nil
	}
	return nil, fmt.Errorf("no synthetic trace for test type %q", test)
}
