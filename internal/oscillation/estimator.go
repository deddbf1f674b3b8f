// Package oscillation tracks a noisy, near-sinusoidal scalar signal such as
// the accelerometer reading of a swinging body. A Tracker detects peaks and
// nadirs over a short sliding window, optionally after a biquad low-pass
// stage, and adapts running estimates of period, amplitude, bias and phase
// with per-parameter exponential gains. The estimates feed a closed-form
// sinusoidal predictor that can forecast the signal for phase-locked
// decisions.
//
// A Tracker is not safe for concurrent use. Give every monitored signal its
// own Tracker.
package oscillation

import (
	"fmt"
	"math"
)

// Result is returned for every accepted sample.
type Result struct {
	T   float64 `json:"t"`
	Raw float64 `json:"raw"`
	// Filtered equals Raw when filtering is disabled.
	Filtered float64 `json:"filtered"`
	// Predicted is the model value at T. When HasPrediction is false no
	// phase anchor exists yet and Predicted carries the detector input
	// (Filtered) instead.
	Predicted     float64 `json:"predicted"`
	HasPrediction bool    `json:"has_prediction"`
	// Event is the classification of the window centre produced by this
	// sample; EventSample is that centre, which lags T by half a window.
	Event       Extremum `json:"event"`
	EventSample Sample   `json:"event_sample"`
}

// Tracker owns the windows, filter and adaptive state for one signal.
type Tracker struct {
	cfg Config

	raw      *Window
	filtered *Window
	filter   *Biquad

	state    State
	lastT    float64
	hasT     bool
	result   Result
	rejected int
}

// New validates cfg and returns a tracker seeded with its initial estimates.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		cfg: cfg,
		raw: NewWindow(cfg.WindowSize),
	}
	if cfg.UseFilter {
		t.filtered = NewWindow(cfg.WindowSize)
		t.filter = NewBiquad(cfg.Filter)
	}
	t.state = t.initialState()
	return t, nil
}

func (t *Tracker) initialState() State {
	return State{
		Period:    t.cfg.InitialPeriod,
		Amplitude: t.cfg.InitialAmplitude,
	}
}

// Config returns the configuration the tracker was built with.
func (t *Tracker) Config() Config { return t.cfg }

// State returns a snapshot of the current estimates.
func (t *Tracker) State() State { return t.state }

// Last returns the result of the most recent accepted sample and false if
// no sample has been accepted yet.
func (t *Tracker) Last() (Result, bool) { return t.result, t.hasT }

// Window returns the window the detector runs over: the filtered window when
// filtering is enabled, otherwise the raw one. Callers must not mutate it.
func (t *Tracker) Window() *Window {
	if t.filtered != nil {
		return t.filtered
	}
	return t.raw
}

// Rejected returns how many samples AddSample has refused.
func (t *Tracker) Rejected() int { return t.rejected }

// RawWindow returns the unfiltered sample window. Callers must not mutate it.
func (t *Tracker) RawWindow() *Window { return t.raw }

// AddSample feeds one reading into the tracker and returns the current
// prediction. Samples with a non-finite value fail with ErrInvalidSample and
// samples whose timestamp does not advance fail with ErrOutOfOrderSample; in
// both cases the estimates, windows and filter history are left untouched.
func (t *Tracker) AddSample(ts, v float64) (Result, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.rejected++
		return Result{}, fmt.Errorf("%w: value %v at t=%v", ErrInvalidSample, v, ts)
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) || (t.hasT && ts <= t.lastT) {
		t.rejected++
		return Result{}, fmt.Errorf("%w: t=%v after t=%v", ErrOutOfOrderSample, ts, t.lastT)
	}
	t.lastT, t.hasT = ts, true
	t.state.SampleCount++

	t.raw.Push(Sample{T: ts, Value: v})
	input := v
	if t.filter != nil {
		input = t.filter.Filter(v)
		t.filtered.Push(Sample{T: ts, Value: input})
	}

	det := Classify(t.Window())
	switch det.Kind {
	case Nadir:
		t.observeNadir(det.Sample)
	case Peak:
		t.observePeak(det.Sample)
	}

	res := Result{
		T:           ts,
		Raw:         v,
		Filtered:    input,
		Event:       det.Kind,
		EventSample: det.Sample,
	}
	if p, err := Predict(t.state, ts); err == nil {
		res.Predicted, res.HasPrediction = p, true
	} else {
		res.Predicted = input
	}
	t.result = res
	return res, nil
}

func (t *Tracker) observeNadir(s Sample) {
	t.state.LastNadirValue, t.state.HasLastNadir = s.Value, true
	t.state.NadirCount++
}

func (t *Tracker) observePeak(s Sample) {
	st := &t.state
	st.PeakCount++
	st.Amplitude += (s.Value - (st.Amplitude + st.Bias)) * t.cfg.AmplitudeGain

	if !st.HasLastPeak {
		st.LastPeakTime, st.HasLastPeak = s.T, true
		return
	}

	st.Period += (s.T - (st.LastPeakTime + st.Period)) * t.cfg.PeriodGain
	// Extrapolate the previous anchor by one period, then pull it towards
	// the observed peak.
	st.LastPeakTime += st.Period
	st.LastPeakTime += (s.T - st.LastPeakTime) * t.cfg.PhaseGain

	if st.HasLastNadir {
		mid := (s.Value + st.LastNadirValue) / 2
		st.Bias += (mid - st.Bias) * t.cfg.BiasGain
	}
}

// Predict forecasts the signal at time ts from the current estimates.
func (t *Tracker) Predict(ts float64) (float64, error) {
	return Predict(t.state, ts)
}

// Reset discards all history and restores the initial estimates.
func (t *Tracker) Reset() {
	t.raw.Reset()
	if t.filter != nil {
		t.filtered.Reset()
		t.filter.Reset()
	}
	t.state = t.initialState()
	t.lastT, t.hasT = 0, false
	t.result = Result{}
	t.rejected = 0
}
