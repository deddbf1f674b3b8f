// Command gen-swing generates synthetic swing recordings for replay and the
// dev-mode serial mock.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/swing.report/internal/samplefile"
	"github.com/banshee-data/swing.report/internal/simulate"
)

type options struct {
	output   string
	rate     float64
	duration float64
	swing    simulate.Swing
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("gen-swing", flag.ContinueOnError)
	fs.StringVar(&o.output, "o", "swing.tsv", "output path, - for stdout")
	fs.Float64Var(&o.rate, "rate", 50, "sample rate in Hz")
	fs.Float64Var(&o.duration, "d", 12, "duration in seconds")
	fs.Float64Var(&o.swing.Period, "period", 1.2, "swing period in seconds")
	fs.Float64Var(&o.swing.Amplitude, "amp", 0.38, "peak amplitude")
	fs.Float64Var(&o.swing.Bias, "bias", 0.02, "constant offset")
	fs.Float64Var(&o.swing.Noise, "noise", 0.03, "uniform noise half-width")
	fs.Float64Var(&o.swing.Damping, "damping", 0.01, "amplitude decay per second")
	fs.Float64Var(&o.swing.PeriodDrift, "drift", 0, "period change per second")
	fs.Float64Var(&o.swing.PeakAt, "peak-at", 0.3, "time of the first peak")
	fs.Uint64Var(&o.swing.Seed, "seed", 7, "noise seed")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.rate <= 0 {
		return o, fmt.Errorf("rate must be positive, got %g", o.rate)
	}
	return o, nil
}

func generate(w io.Writer, o options) (int, error) {
	samples, err := o.swing.Generate(1/o.rate, o.duration)
	if err != nil {
		return 0, err
	}
	sw := samplefile.NewSampleWriter(w)
	for _, s := range samples {
		if err := sw.WriteSample(s); err != nil {
			return 0, err
		}
	}
	return len(samples), sw.Flush()
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	out := os.Stdout
	if o.output != "-" {
		f, err := os.Create(o.output)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		out = f
	}

	n, err := generate(out, o)
	if err != nil {
		log.Fatal(err)
	}
	if o.output != "-" {
		log.Printf("✓ Created: %s (%d samples)", o.output, n)
	}
}
