package oscillation

import (
	"math"
)

// State is a snapshot of a tracker's adaptive estimates.
type State struct {
	Period    float64 `json:"period"`
	Amplitude float64 `json:"amplitude"`
	Bias      float64 `json:"bias"`

	LastPeakTime   float64 `json:"last_peak_time"`
	HasLastPeak    bool    `json:"has_last_peak"`
	LastNadirValue float64 `json:"last_nadir_value"`
	HasLastNadir   bool    `json:"has_last_nadir"`
	PeakCount      int     `json:"peak_count"`
	NadirCount     int     `json:"nadir_count"`
	SampleCount    int     `json:"sample_count"`
}

// Trustworthy reports whether at least two peaks have been observed, which
// is the point at which the period estimate has been corrected at least once.
func (s State) Trustworthy() bool { return s.PeakCount >= 2 }

func (s State) ready() bool {
	return s.HasLastPeak && s.Period > 0 && !math.IsInf(s.Period, 0) && !math.IsNaN(s.Period)
}

// Predict returns the modelled signal value at time t:
//
//	Amplitude * sin(π/2 + 2π(t-LastPeakTime)/Period) + Bias
//
// so the model peaks exactly at LastPeakTime. It returns
// ErrUninitializedEstimate until a peak has anchored the phase. t may lie
// beyond the newest sample.
func Predict(s State, t float64) (float64, error) {
	if !s.ready() {
		return 0, ErrUninitializedEstimate
	}
	return s.Amplitude*math.Sin(math.Pi/2+2*math.Pi*(t-s.LastPeakTime)/s.Period) + s.Bias, nil
}

// PhaseAt returns the model phase at t in radians, in [0, 2π), with 0 at a
// peak and π at a nadir.
func PhaseAt(s State, t float64) (float64, error) {
	if !s.ready() {
		return 0, ErrUninitializedEstimate
	}
	cycles := (t - s.LastPeakTime) / s.Period
	frac := cycles - math.Floor(cycles)
	return 2 * math.Pi * frac, nil
}

// NextPeakAfter returns the first modelled peak time at or after t.
func NextPeakAfter(s State, t float64) (float64, error) {
	if !s.ready() {
		return 0, ErrUninitializedEstimate
	}
	k := math.Ceil((t - s.LastPeakTime) / s.Period)
	return s.LastPeakTime + k*s.Period, nil
}
