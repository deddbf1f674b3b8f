// Package simulate generates synthetic accelerometer traces of a swinging
// body for replay, demos and tests.
package simulate

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

// Swing describes a sinusoidal swing. Phase is zero at a peak when
// PeakAt is zero.
type Swing struct {
	Period    float64 // seconds
	Amplitude float64
	Bias      float64

	// Noise is the half-width of uniform additive noise.
	Noise float64
	// Damping is the exponential amplitude decay rate per second.
	Damping float64
	// PeriodDrift is the change in period per second.
	PeriodDrift float64
	// PeakAt shifts the first peak to this time.
	PeakAt float64

	Seed uint64
}

// Validate checks that the swing can be generated.
func (s Swing) Validate() error {
	if s.Period <= 0 || math.IsNaN(s.Period) {
		return errors.New("period must be positive")
	}
	if s.Noise < 0 || s.Damping < 0 {
		return errors.New("noise and damping must be non-negative")
	}
	return nil
}

// Generate samples the swing every dt seconds from t=0 up to and including
// duration. The same Swing always yields the same samples.
func (s Swing) Generate(dt, duration float64) ([]oscillation.Sample, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if dt <= 0 || duration < 0 {
		return nil, errors.New("dt must be positive and duration non-negative")
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x5eed))
	n := int(math.Floor(duration/dt+1e-9)) + 1
	out := make([]oscillation.Sample, n)

	// Integrate phase so a drifting period stays continuous.
	phase := 0.0
	prev := 0.0
	for i := range out {
		t := float64(i) * dt
		period := s.PeriodAt(t)
		if i > 0 {
			phase += 2 * math.Pi * (t - prev) / period
		}
		prev = t
		amp := s.Amplitude * math.Exp(-s.Damping*t)
		v := s.Bias + amp*math.Cos(phase-2*math.Pi*s.PeakAt/s.Period)
		if s.Noise > 0 {
			v += (rng.Float64()*2 - 1) * s.Noise
		}
		out[i] = oscillation.Sample{T: t, Value: v}
	}
	return out, nil
}

// PeriodAt returns the instantaneous period at t, never less than a tenth
// of the base period.
func (s Swing) PeriodAt(t float64) float64 {
	return math.Max(s.Period+s.PeriodDrift*t, s.Period/10)
}
