package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/forceplate.report/internal/forceplate/classify"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
)

func runSimulate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	test := fs.String("test", "cmj", "Test type: cmj, sj, dj or imtp")
	bw := fs.Float64("bw", 700, "Body weight in N")
	rate := fs.Float64("rate", 1000, "Sample rate in Hz")
	noise := fs.Float64("noise", 0, "Gaussian noise SD in N per platform")
	seed := fs.Uint64("seed", 1, "Noise seed")
	asym := fs.Float64("asymmetry", 0, "Left/right asymmetry index, 0..1")
	out := fs.String("out", "", "Output CSV path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tt, err := classify.ParseTestType(*test)
	if err != nil {
		return err
	}
	if *bw <= 0 || *rate <= 0 {
		return fmt.Errorf("-bw and -rate must be positive")
	}
	if *asym < 0 || *asym >= 1 {
		return fmt.Errorf("-asymmetry must be in [0, 1)")
	}
	b, err := synthFor(tt, *rate, *bw)
	if err != nil {
		return err
	}
	if *noise > 0 {
		b = b.Noise(*noise, *seed)
	}
	if *asym > 0 {
		b = b.Asymmetry(*asym)
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return samples.WriteRecording(w, b.Samples())
}
