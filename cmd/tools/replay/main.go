// Command replay runs a recorded swing through the tracker offline. It writes
// the measured, filtered and predicted series as TSV, optionally charts them
// and stores them as a session, and prints prediction error statistics.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/swing.report/internal/config"
	"github.com/banshee-data/swing.report/internal/db"
	"github.com/banshee-data/swing.report/internal/monitoring"
	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/report"
	"github.com/banshee-data/swing.report/internal/samplefile"
)

// Config holds the replay options.
type Config struct {
	Input    string
	Output   string
	PNG      string
	HTML     string
	Tuning   string
	NoFilter bool
	DBPath   string
	Label    string
	Verbose  bool
}

// Result is what a replay produced.
type Result struct {
	Summary   report.Summary
	Rejected  int
	SessionID string

	// Zero-crossing cross-check of the period.
	CrossingPeriod float64
	CrossingCycles int
}

func main() {
	cfg := parseFlags()
	if cfg.Input == "" {
		log.Fatal("input recording is required (-in)")
	}
	monitoring.SetDebug(cfg.Verbose)

	res, err := run(cfg)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if err := printResult(os.Stderr, res); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Input, "in", "", "Recording to replay (t<TAB>value per line)")
	flag.StringVar(&cfg.Output, "out", "-", "Result TSV path, - for stdout, empty to skip")
	flag.StringVar(&cfg.PNG, "png", "", "Write a PNG chart to this path")
	flag.StringVar(&cfg.HTML, "html", "", "Write an interactive HTML chart to this path")
	flag.StringVar(&cfg.Tuning, "config", "", "Tuning config, JSON or YAML")
	flag.BoolVar(&cfg.NoFilter, "no-filter", false, "Detect on raw samples instead of filtered ones")
	flag.StringVar(&cfg.DBPath, "db", "", "Store the replay as a session in this SQLite database")
	flag.StringVar(&cfg.Label, "label", "", "Session label (defaults to the input path)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Log every detected peak and nadir")

	flag.Parse()

	return cfg
}

func trackerConfig(cfg Config) (oscillation.Config, error) {
	tc := oscillation.DefaultConfig()
	if cfg.Tuning != "" {
		tuning, err := config.LoadTuningConfig(cfg.Tuning)
		if err != nil {
			return tc, err
		}
		if tc, err = tuning.TrackerConfig(); err != nil {
			return tc, err
		}
	}
	if cfg.NoFilter {
		tc.UseFilter = false
	}
	return tc, nil
}

func run(cfg Config) (*Result, error) {
	tc, err := trackerConfig(cfg)
	if err != nil {
		return nil, err
	}
	tracker, err := oscillation.New(tc)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(cfg.Input)
	if err != nil {
		return nil, err
	}
	samples, err := samplefile.ReadAll(in)
	in.Close()
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s contains no readings", cfg.Input)
	}

	res := &Result{}
	crossings := oscillation.NewZeroCrossingTracker(tc.InitialPeriod)
	results := make([]oscillation.Result, 0, len(samples))
	var estimates []db.Estimate
	for _, s := range samples {
		r, err := tracker.AddSample(s.T, s.Value)
		if err != nil {
			res.Rejected++
			monitoring.Logf("skipping sample at t=%.3f: %v", s.T, err)
			continue
		}
		results = append(results, r)
		state := tracker.State()
		crossings.Add(r.T, r.Filtered-state.Bias)
		if r.Event != oscillation.Neither {
			monitoring.Debugf("%s at t=%.3f value=%.4f", r.Event, r.EventSample.T, r.EventSample.Value)
		}
		if r.Event == oscillation.Peak {
			estimates = append(estimates, db.Estimate{T: r.T, State: state})
		}
	}

	res.Summary = report.Summarise(results, tracker.State())
	res.CrossingPeriod, _ = crossings.Period()
	res.CrossingCycles = crossings.Cycles()

	if err := writeResults(cfg.Output, results); err != nil {
		return nil, err
	}
	if cfg.PNG != "" {
		if err := report.SavePNG(cfg.PNG, cfg.Input, results); err != nil {
			return nil, err
		}
	}
	if cfg.HTML != "" {
		if err := writeHTML(cfg.HTML, cfg.Input, results); err != nil {
			return nil, err
		}
	}
	if cfg.DBPath != "" {
		id, err := store(cfg, tc, results, estimates)
		if err != nil {
			return nil, err
		}
		res.SessionID = id
	}
	return res, nil
}

func writeResults(path string, results []oscillation.Result) (err error) {
	if path == "" {
		return nil
	}
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}
	w := samplefile.NewResultWriter(out)
	for _, r := range results {
		if err := w.WriteResult(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeHTML(path, title string, results []oscillation.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	subtitle := fmt.Sprintf("%d samples", len(results))
	if err := report.RenderHTML(f, title, subtitle, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func store(cfg Config, tc oscillation.Config, results []oscillation.Result, estimates []db.Estimate) (string, error) {
	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return "", err
	}
	defer database.Close()

	label := cfg.Label
	if label == "" {
		label = cfg.Input
	}
	session, err := database.CreateSession(label, tc, time.Now())
	if err != nil {
		return "", err
	}
	if err := database.RecordResults(session.ID, results); err != nil {
		return "", err
	}
	for _, e := range estimates {
		if err := database.RecordEstimate(session.ID, e.T, e.State); err != nil {
			return "", err
		}
	}
	return session.ID, nil
}

func printResult(w io.Writer, res *Result) error {
	if res == nil {
		return errors.New("no result")
	}
	if err := res.Summary.WriteText(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "rejected         %d\n", res.Rejected)
	if res.CrossingCycles > 0 {
		fmt.Fprintf(w, "zero crossings   %.4f s over %d cycles\n", res.CrossingPeriod, res.CrossingCycles)
	}
	if res.SessionID != "" {
		fmt.Fprintf(w, "session          %s\n", res.SessionID)
	}
	return nil
}
