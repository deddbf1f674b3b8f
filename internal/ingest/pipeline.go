// Package ingest turns a stream of accelerometer lines into tracker results,
// persists them and publishes snapshots for readers such as the HTTP API.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/swing.report/internal/monitoring"
	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/samplefile"
	"github.com/banshee-data/swing.report/internal/serialmux"
	"github.com/banshee-data/swing.report/internal/timeutil"
)

// Store persists results for a session. *db.DB satisfies it.
type Store interface {
	RecordResult(sessionID string, r oscillation.Result) error
	RecordEstimate(sessionID string, t float64, s oscillation.State) error
}

// Subscriber is the part of a serial mux the pipeline consumes.
type Subscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Options configures a Pipeline. Store may be nil to track without
// persisting. Clock stamps readings that arrive without a timestamp and
// defaults to the real clock.
type Options struct {
	SessionID string
	Store     Store
	Clock     timeutil.Clock

	// NewSession opens a fresh session for Reset. Without it a reset keeps
	// the session, and timestamps must keep increasing across the reset.
	NewSession func() (string, error)
}

// Snapshot is a consistent copy of the pipeline's latest output.
type Snapshot struct {
	SessionID   string             `json:"session_id"`
	Last        oscillation.Result `json:"last"`
	HasLast     bool               `json:"has_last"`
	State       oscillation.State  `json:"state"`
	Trustworthy bool               `json:"trustworthy"`

	Accepted    int `json:"accepted"`
	Rejected    int `json:"rejected"`
	Skipped     int `json:"skipped"`
	StoreErrors int `json:"store_errors"`
}

// Pipeline owns the tracker for one session. Its methods may be called from
// multiple goroutines; tracker access is serialised by mu.
type Pipeline struct {
	store      Store
	clock      timeutil.Clock
	newSession func() (string, error)

	mu        sync.RWMutex
	sessionID string
	stopwatch *timeutil.Stopwatch
	tracker   *oscillation.Tracker
	snap      Snapshot

	// last accepted timestamp in the current session, kept across resets
	lastT float64
	hasT  bool
}

func NewPipeline(cfg oscillation.Config, opts Options) (*Pipeline, error) {
	tracker, err := oscillation.New(cfg)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		store:      opts.Store,
		clock:      opts.Clock,
		newSession: opts.NewSession,
		sessionID:  opts.SessionID,
		stopwatch:  timeutil.NewStopwatch(opts.Clock),
		tracker:    tracker,
	}
	p.snap = Snapshot{SessionID: opts.SessionID, State: tracker.State()}
	monitoring.Logf("ingest: session %q tracking with window=%d filter=%t", opts.SessionID, cfg.WindowSize, cfg.UseFilter)
	return p, nil
}

// HandleLine parses one line and feeds it to the tracker. Blank, comment and
// header lines return samplefile.ErrSkipLine. Readings without a timestamp
// are stamped with the seconds elapsed since the session started.
func (p *Pipeline) HandleLine(line string) (oscillation.Result, error) {
	reading, err := samplefile.ParseReading(line)
	if err != nil {
		p.mu.Lock()
		p.snap.Skipped++
		p.mu.Unlock()
		return oscillation.Result{}, err
	}
	t := reading.T
	if !reading.HasT {
		p.mu.RLock()
		t = p.stopwatch.Seconds()
		p.mu.RUnlock()
	}
	return p.HandleSample(t, reading.Value)
}

// HandleSample feeds one timestamped value to the tracker and persists the
// result. Rejected samples leave the estimates untouched and are counted.
// Within a session timestamps must increase, even across Reset, so stored
// samples never collide.
func (p *Pipeline) HandleSample(t, v float64) (oscillation.Result, error) {
	p.mu.Lock()
	if p.hasT && !(t > p.lastT) {
		p.snap.Rejected++
		last := p.lastT
		p.mu.Unlock()
		return oscillation.Result{}, fmt.Errorf("%w: t=%v after t=%v in session %q",
			oscillation.ErrOutOfOrderSample, t, last, p.sessionID)
	}
	r, err := p.tracker.AddSample(t, v)
	if err != nil {
		p.snap.Rejected++
		p.mu.Unlock()
		return r, err
	}
	p.lastT, p.hasT = t, true
	session := p.sessionID
	state := p.tracker.State()
	p.snap.Last = r
	p.snap.HasLast = true
	p.snap.State = state
	p.snap.Trustworthy = state.Trustworthy()
	p.snap.Accepted++
	p.mu.Unlock()

	if r.Event != oscillation.Neither {
		monitoring.Debugf("ingest: %s at t=%.3f value=%.4f period=%.3f amplitude=%.3f",
			r.Event, r.EventSample.T, r.EventSample.Value, state.Period, state.Amplitude)
	}

	if err := p.persist(session, r, state); err != nil {
		p.mu.Lock()
		p.snap.StoreErrors++
		p.mu.Unlock()
		return r, err
	}
	return r, nil
}

func (p *Pipeline) persist(session string, r oscillation.Result, state oscillation.State) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.RecordResult(session, r); err != nil {
		return fmt.Errorf("failed to record result at t=%.3f: %w", r.T, err)
	}
	if r.Event == oscillation.Peak {
		if err := p.store.RecordEstimate(session, r.T, state); err != nil {
			return fmt.Errorf("failed to record estimate at t=%.3f: %w", r.T, err)
		}
	}
	return nil
}

// Snapshot returns a copy of the latest result, estimates and counters.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Predict forecasts the signal at t from the current estimates.
func (p *Pipeline) Predict(t float64) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracker.Predict(t)
}

// Reset returns the tracker to its initial estimates. Counters are kept.
// With Options.NewSession set, the next samples go to a fresh session whose
// clock starts at zero; otherwise the current session continues. On error
// nothing is reset.
func (p *Pipeline) Reset() error {
	var next string
	if p.newSession != nil {
		id, err := p.newSession()
		if err != nil {
			return fmt.Errorf("failed to start a new session: %w", err)
		}
		next = id
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Reset()
	p.snap.Last = oscillation.Result{}
	p.snap.HasLast = false
	p.snap.State = p.tracker.State()
	p.snap.Trustworthy = false
	if p.newSession != nil {
		monitoring.Logf("ingest: tracker reset, session %q follows %q", next, p.sessionID)
		p.sessionID = next
		p.snap.SessionID = next
		p.stopwatch = timeutil.NewStopwatch(p.clock)
		p.hasT = false
		return nil
	}
	monitoring.Logf("ingest: session %q tracker reset", p.sessionID)
	return nil
}

// Run subscribes to mux and handles every reading until ctx is done or the
// subscription is closed. Status lines from the board are logged; other
// non-reading lines are ignored.
func (p *Pipeline) Run(ctx context.Context, mux Subscriber) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch serialmux.ClassifyLine(line) {
			case serialmux.LineStatus:
				monitoring.Logf("ingest: device status %s", line)
				continue
			case serialmux.LineUnknown:
				monitoring.Debugf("ingest: ignoring line %q", line)
				continue
			}
			if _, err := p.HandleLine(line); err != nil && !errors.Is(err, samplefile.ErrSkipLine) {
				monitoring.Logf("ingest: %v", err)
			}
		}
	}
}
