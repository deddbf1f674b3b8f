package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the swing tracker.
// Fields are pointers so that a partial file only overrides what it names;
// the Get* accessors fall back to oscillation.DefaultConfig for the rest.
type TuningConfig struct {
	// Detection
	WindowSize *int  `json:"window_size,omitempty" yaml:"window_size,omitempty"`
	UseFilter  *bool `json:"use_filter,omitempty" yaml:"use_filter,omitempty"`

	// Biquad coefficients
	FilterA0 *float64 `json:"filter_a0,omitempty" yaml:"filter_a0,omitempty"`
	FilterA1 *float64 `json:"filter_a1,omitempty" yaml:"filter_a1,omitempty"`
	FilterA2 *float64 `json:"filter_a2,omitempty" yaml:"filter_a2,omitempty"`
	FilterB1 *float64 `json:"filter_b1,omitempty" yaml:"filter_b1,omitempty"`
	FilterB2 *float64 `json:"filter_b2,omitempty" yaml:"filter_b2,omitempty"`

	// Adaptation gains, each in [0, 1]
	AmplitudeGain *float64 `json:"amplitude_gain,omitempty" yaml:"amplitude_gain,omitempty"`
	PeriodGain    *float64 `json:"period_gain,omitempty" yaml:"period_gain,omitempty"`
	PhaseGain     *float64 `json:"phase_gain,omitempty" yaml:"phase_gain,omitempty"`
	BiasGain      *float64 `json:"bias_gain,omitempty" yaml:"bias_gain,omitempty"`

	// Seeds
	InitialPeriod    *float64 `json:"initial_period,omitempty" yaml:"initial_period,omitempty"`
	InitialAmplitude *float64 `json:"initial_amplitude,omitempty" yaml:"initial_amplitude,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file, chosen by
// extension (.json, .yaml or .yml). Files over 1 MiB are refused.
// Fields omitted from the file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	var unmarshal func([]byte, any) error
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("config file must have a .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/replay/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. The combined tracker
// configuration is validated again by TrackerConfig.
func (c *TuningConfig) Validate() error {
	if c.WindowSize != nil {
		if *c.WindowSize < 3 || *c.WindowSize%2 == 0 {
			return fmt.Errorf("window_size must be odd and at least 3, got %d", *c.WindowSize)
		}
	}

	gains := []struct {
		name string
		v    *float64
	}{
		{"amplitude_gain", c.AmplitudeGain},
		{"period_gain", c.PeriodGain},
		{"phase_gain", c.PhaseGain},
		{"bias_gain", c.BiasGain},
	}
	for _, g := range gains {
		if g.v != nil && (math.IsNaN(*g.v) || *g.v < 0 || *g.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", g.name, *g.v)
		}
	}

	if c.InitialPeriod != nil && *c.InitialPeriod <= 0 {
		return fmt.Errorf("initial_period must be positive, got %f", *c.InitialPeriod)
	}
	if c.InitialAmplitude != nil && *c.InitialAmplitude < 0 {
		return fmt.Errorf("initial_amplitude must be non-negative, got %f", *c.InitialAmplitude)
	}

	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return oscillation.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetUseFilter returns the use_filter value or the default.
func (c *TuningConfig) GetUseFilter() bool {
	if c.UseFilter == nil {
		return true
	}
	return *c.UseFilter
}

// GetFilterCoefficients returns the biquad coefficients, taking each unset
// coefficient from oscillation.DefaultCoefficients.
func (c *TuningConfig) GetFilterCoefficients() oscillation.Coefficients {
	def := oscillation.DefaultCoefficients()
	return oscillation.Coefficients{
		A0: getFloat(c.FilterA0, def.A0),
		A1: getFloat(c.FilterA1, def.A1),
		A2: getFloat(c.FilterA2, def.A2),
		B1: getFloat(c.FilterB1, def.B1),
		B2: getFloat(c.FilterB2, def.B2),
	}
}

// GetAmplitudeGain returns the amplitude_gain value or the default.
func (c *TuningConfig) GetAmplitudeGain() float64 {
	return getFloat(c.AmplitudeGain, oscillation.DefaultConfig().AmplitudeGain)
}

// GetPeriodGain returns the period_gain value or the default.
func (c *TuningConfig) GetPeriodGain() float64 {
	return getFloat(c.PeriodGain, oscillation.DefaultConfig().PeriodGain)
}

// GetPhaseGain returns the phase_gain value or the default.
func (c *TuningConfig) GetPhaseGain() float64 {
	return getFloat(c.PhaseGain, oscillation.DefaultConfig().PhaseGain)
}

// GetBiasGain returns the bias_gain value or the default.
func (c *TuningConfig) GetBiasGain() float64 {
	return getFloat(c.BiasGain, oscillation.DefaultConfig().BiasGain)
}

// GetInitialPeriod returns the initial_period value or the default.
func (c *TuningConfig) GetInitialPeriod() float64 {
	return getFloat(c.InitialPeriod, oscillation.DefaultConfig().InitialPeriod)
}

// GetInitialAmplitude returns the initial_amplitude value or the default.
func (c *TuningConfig) GetInitialAmplitude() float64 {
	return getFloat(c.InitialAmplitude, oscillation.DefaultConfig().InitialAmplitude)
}

// TrackerConfig assembles and validates the tracker configuration.
func (c *TuningConfig) TrackerConfig() (oscillation.Config, error) {
	cfg := oscillation.Config{
		WindowSize:       c.GetWindowSize(),
		UseFilter:        c.GetUseFilter(),
		Filter:           c.GetFilterCoefficients(),
		AmplitudeGain:    c.GetAmplitudeGain(),
		PeriodGain:       c.GetPeriodGain(),
		PhaseGain:        c.GetPhaseGain(),
		BiasGain:         c.GetBiasGain(),
		InitialPeriod:    c.GetInitialPeriod(),
		InitialAmplitude: c.GetInitialAmplitude(),
	}
	if err := cfg.Validate(); err != nil {
		return oscillation.Config{}, err
	}
	return cfg, nil
}
