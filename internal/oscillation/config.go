package oscillation

import (
	"fmt"
	"math"
)

// DefaultWindowSize is the extremum detection window width.
const DefaultWindowSize = 5

// Config holds the construction-time parameters of a Tracker. Gains are
// exponential adaptation rates in [0, 1]: 0 freezes a parameter, 1 snaps it
// to each new observation.
type Config struct {
	WindowSize int          `json:"window_size"`
	UseFilter  bool         `json:"use_filter"`
	Filter     Coefficients `json:"filter"`

	AmplitudeGain float64 `json:"amplitude_gain"`
	PeriodGain    float64 `json:"period_gain"`
	PhaseGain     float64 `json:"phase_gain"`
	BiasGain      float64 `json:"bias_gain"`

	// Seeds used until the first peaks have been observed.
	InitialPeriod    float64 `json:"initial_period"`
	InitialAmplitude float64 `json:"initial_amplitude"`
}

// DefaultConfig returns the tuning used for the reference swing: a five
// sample window over filtered input, a slow period loop and a fast amplitude
// loop.
func DefaultConfig() Config {
	return Config{
		WindowSize:       DefaultWindowSize,
		UseFilter:        true,
		Filter:           DefaultCoefficients(),
		AmplitudeGain:    0.5,
		PeriodGain:       0.1,
		PhaseGain:        0.1,
		BiasGain:         0.1,
		InitialPeriod:    1.2,
		InitialAmplitude: 0.4,
	}
}

// Validate reports the first problem found in c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.WindowSize < 3 || c.WindowSize%2 == 0 {
		return fmt.Errorf("%w: window size must be odd and at least 3, got %d", ErrInvalidConfig, c.WindowSize)
	}
	gains := []struct {
		name string
		v    float64
	}{
		{"amplitude_gain", c.AmplitudeGain},
		{"period_gain", c.PeriodGain},
		{"phase_gain", c.PhaseGain},
		{"bias_gain", c.BiasGain},
	}
	for _, g := range gains {
		if math.IsNaN(g.v) || g.v < 0 || g.v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidConfig, g.name, g.v)
		}
	}
	if math.IsNaN(c.InitialPeriod) || math.IsInf(c.InitialPeriod, 0) || c.InitialPeriod <= 0 {
		return fmt.Errorf("%w: initial_period must be positive, got %v", ErrInvalidConfig, c.InitialPeriod)
	}
	if math.IsNaN(c.InitialAmplitude) || math.IsInf(c.InitialAmplitude, 0) || c.InitialAmplitude < 0 {
		return fmt.Errorf("%w: initial_amplitude must be non-negative, got %v", ErrInvalidConfig, c.InitialAmplitude)
	}
	if c.UseFilter {
		if err := c.Filter.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}
