package oscillation

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneCycle approximates a 0.8 s swing of amplitude 0.38 sampled at 10 Hz.
var oneCycle = []Sample{
	{0.0, 0.0}, {0.1, 0.3}, {0.2, 0.38}, {0.3, 0.3}, {0.4, 0.0},
	{0.5, -0.3}, {0.6, -0.38}, {0.7, -0.3}, {0.8, 0.0},
}

func rawConfig() Config {
	cfg := DefaultConfig()
	cfg.UseFilter = false
	return cfg
}

func feed(t *testing.T, tr *Tracker, samples []Sample) []Result {
	t.Helper()
	out := make([]Result, 0, len(samples))
	for _, s := range samples {
		r, err := tr.AddSample(s.T, s.Value)
		require.NoError(t, err, "AddSample(%v, %v)", s.T, s.Value)
		out = append(out, r)
	}
	return out
}

func sine(period, amplitude, bias, dt float64, cycles int) []Sample {
	n := int(float64(cycles)*period/dt) + 1
	out := make([]Sample, n)
	for i := range out {
		ts := float64(i) * dt
		out[i] = Sample{T: ts, Value: bias + amplitude*math.Sin(2*math.Pi*ts/period)}
	}
	return out
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 4
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestTracker_OneCycleEndToEnd(t *testing.T) {
	cfg := rawConfig()
	cfg.PeriodGain = 1
	cfg.PhaseGain = 1
	tr, err := New(cfg)
	require.NoError(t, err)

	var peaks, nadirs []Sample
	collect := func(results []Result) {
		for _, r := range results {
			switch r.Event {
			case Peak:
				peaks = append(peaks, r.EventSample)
			case Nadir:
				nadirs = append(nadirs, r.EventSample)
			}
		}
	}

	collect(feed(t, tr, oneCycle))
	require.Len(t, peaks, 1)
	require.Len(t, nadirs, 1)
	assert.InDelta(t, 0.2, peaks[0].T, 1e-9)
	assert.InDelta(t, 0.38, peaks[0].Value, 1e-9)
	assert.InDelta(t, 0.6, nadirs[0].T, 1e-9)
	assert.InDelta(t, -0.38, nadirs[0].Value, 1e-9)

	second := make([]Sample, 0, len(oneCycle)-1)
	for _, s := range oneCycle[1:] {
		second = append(second, Sample{T: s.T + 0.8, Value: s.Value})
	}
	collect(feed(t, tr, second))
	require.Len(t, peaks, 2)
	assert.InDelta(t, 1.0, peaks[1].T, 1e-9)

	st := tr.State()
	assert.InDelta(t, 0.8, st.Period, 1e-9)
	assert.True(t, st.Trustworthy())
	assert.Equal(t, 2, st.PeakCount)
}

func TestTracker_FirstPeakOnlyAnchorsPhase(t *testing.T) {
	tr, err := New(rawConfig())
	require.NoError(t, err)
	results := feed(t, tr, oneCycle[:5])

	st := tr.State()
	require.True(t, st.HasLastPeak)
	assert.Equal(t, 0.2, st.LastPeakTime)
	assert.Equal(t, 1.2, st.Period, "period must not adapt on the first peak")
	assert.InDelta(t, 0.39, st.Amplitude, 1e-12)
	assert.False(t, st.Trustworthy())

	for _, r := range results[:4] {
		assert.False(t, r.HasPrediction, "prediction before any peak at t=%v", r.T)
		assert.Equal(t, r.Filtered, r.Predicted)
	}
	assert.True(t, results[4].HasPrediction)
}

func TestTracker_BiasWaitsForNadir(t *testing.T) {
	cfg := rawConfig()
	tr, err := New(cfg)
	require.NoError(t, err)
	// Two peaks without a detectable nadir between them.
	feed(t, tr, []Sample{
		{0.0, 0}, {0.1, 1}, {0.2, 2}, {0.3, 1}, {0.4, 0},
		{0.5, 0}, {0.6, 1}, {0.7, 2}, {0.8, 1}, {0.9, 0},
	})
	st := tr.State()
	require.Equal(t, 2, st.PeakCount)
	assert.False(t, st.HasLastNadir)
	assert.Equal(t, 0.0, st.Bias)
}

func TestTracker_AdaptationRules(t *testing.T) {
	cfg := rawConfig()
	cfg.AmplitudeGain = 0.5
	cfg.PeriodGain = 0.25
	cfg.PhaseGain = 0.5
	cfg.BiasGain = 0.5
	cfg.InitialPeriod = 1.0
	cfg.InitialAmplitude = 1.0
	tr, err := New(cfg)
	require.NoError(t, err)

	feed(t, tr, []Sample{
		{0.0, 0}, {0.1, 1}, {0.2, 3}, {0.3, 1}, {0.4, 0}, // peak 3 at 0.2
		{0.5, -1}, {0.6, -2}, {0.7, -1}, {0.8, 0}, // nadir -2 at 0.6
		{0.9, 1}, {1.0, 2}, {1.1, 1}, {1.2, 0}, // peak 2 at 1.0
	})

	// First peak: amplitude 1 + (3 - 1)*0.5 = 2, anchor 0.2.
	// Second peak: amplitude 2 + (2 - 2)*0.5 = 2.
	// period 1 + (1.0 - 1.2)*0.25 = 0.95
	// anchor 0.2 + 0.95 = 1.15, then 1.15 + (1.0 - 1.15)*0.5 = 1.075
	// bias 0 + ((2 + -2)/2 - 0)*0.5 = 0
	st := tr.State()
	assert.InDelta(t, 2.0, st.Amplitude, 1e-12)
	assert.InDelta(t, 0.95, st.Period, 1e-12)
	assert.InDelta(t, 1.075, st.LastPeakTime, 1e-12)
	assert.InDelta(t, 0.0, st.Bias, 1e-12)
	assert.Equal(t, -2.0, st.LastNadirValue)
	assert.Equal(t, 1, st.NadirCount)
}

func TestTracker_ZeroGainsFreezeEstimates(t *testing.T) {
	cfg := rawConfig()
	cfg.AmplitudeGain, cfg.PeriodGain, cfg.PhaseGain, cfg.BiasGain = 0, 0, 0, 0
	tr, err := New(cfg)
	require.NoError(t, err)
	feed(t, tr, sine(0.9, 2, 0.5, 0.05, 8))

	st := tr.State()
	assert.Equal(t, cfg.InitialPeriod, st.Period)
	assert.Equal(t, cfg.InitialAmplitude, st.Amplitude)
	assert.Equal(t, 0.0, st.Bias)
	assert.Greater(t, st.PeakCount, 5)
}

func TestTracker_ConvergesOnCleanSine(t *testing.T) {
	tests := []struct {
		name      string
		period    float64
		amplitude float64
		dt        float64
	}{
		{"1s swing at 20Hz", 1.0, 0.4, 0.05},
		{"0.8s swing at 10Hz", 0.8, 0.38, 0.1},
		{"2s swing at 20Hz", 2.0, 1.0, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(rawConfig())
			require.NoError(t, err)
			feed(t, tr, sine(tt.period, tt.amplitude, 0, tt.dt, 60))

			st := tr.State()
			if rel := math.Abs(st.Period-tt.period) / tt.period; rel > 0.05 {
				t.Errorf("period = %v, want within 5%% of %v", st.Period, tt.period)
			}
			if rel := math.Abs(st.Amplitude-tt.amplitude) / tt.amplitude; rel > 0.10 {
				t.Errorf("amplitude = %v, want within 10%% of %v", st.Amplitude, tt.amplitude)
			}
		})
	}
}

func TestTracker_FilteredConvergesOnPeriod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialPeriod = 1.0
	tr, err := New(cfg)
	require.NoError(t, err)
	feed(t, tr, sine(1.2, 0.4, 0, 0.1, 40))

	st := tr.State()
	assert.InEpsilon(t, 1.2, st.Period, 0.05)
	// The biquad resonates near the swing frequency, so the filtered
	// amplitude is larger than the raw one.
	assert.Greater(t, st.Amplitude, 0.4)
}

func TestTracker_NoisyInputStaysBounded(t *testing.T) {
	const (
		period    = 1.2
		amplitude = 0.4
	)
	for seed := uint64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewPCG(seed, 42))
		tr, err := New(DefaultConfig())
		require.NoError(t, err)
		for i := 0; i < 5000; i++ {
			ts := float64(i) * 0.1
			v := 0.05 + amplitude*math.Sin(2*math.Pi*ts/period) + (rng.Float64()*2-1)*0.05
			_, err := tr.AddSample(ts, v)
			require.NoError(t, err)

			st := tr.State()
			if !st.Trustworthy() {
				continue
			}
			if math.IsNaN(st.Period) || st.Period < period/2 || st.Period > period*2 {
				t.Fatalf("seed %d t=%v: period diverged to %v", seed, ts, st.Period)
			}
			if math.IsNaN(st.Amplitude) || math.Abs(st.Amplitude) > amplitude*5 {
				t.Fatalf("seed %d t=%v: amplitude diverged to %v", seed, ts, st.Amplitude)
			}
		}
	}
}

func TestTracker_RejectsInvalidSamples(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	feed(t, tr, sine(1.2, 0.4, 0, 0.1, 3))

	before := tr.State()
	rawBefore := tr.RawWindow().Samples()
	filteredBefore := tr.Window().Samples()
	last, _ := tr.Last()

	tests := []struct {
		name string
		ts   float64
		v    float64
		want error
	}{
		{"NaN value", last.T + 0.1, math.NaN(), ErrInvalidSample},
		{"infinite value", last.T + 0.1, math.Inf(-1), ErrInvalidSample},
		{"repeated timestamp", last.T, 0.1, ErrOutOfOrderSample},
		{"earlier timestamp", last.T - 1, 0.1, ErrOutOfOrderSample},
		{"NaN timestamp", math.NaN(), 0.1, ErrOutOfOrderSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.AddSample(tt.ts, tt.v)
			if !errors.Is(err, tt.want) {
				t.Fatalf("AddSample error = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(before, tr.State()); diff != "" {
				t.Errorf("state changed (-before +after):\n%s", diff)
			}
			if diff := cmp.Diff(rawBefore, tr.RawWindow().Samples()); diff != "" {
				t.Errorf("raw window changed (-before +after):\n%s", diff)
			}
			if diff := cmp.Diff(filteredBefore, tr.Window().Samples()); diff != "" {
				t.Errorf("filtered window changed (-before +after):\n%s", diff)
			}
		})
	}
	assert.Equal(t, len(tests), tr.Rejected())

	// The stream continues normally after a rejection.
	_, err = tr.AddSample(last.T+0.1, 0.2)
	assert.NoError(t, err)
}

func TestTracker_FilterMatchesStandaloneBiquad(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	f := NewBiquad(DefaultCoefficients())
	for _, s := range sine(1.1, 0.3, 0.02, 0.1, 4) {
		r, err := tr.AddSample(s.T, s.Value)
		require.NoError(t, err)
		if want := f.Filter(s.Value); r.Filtered != want {
			t.Fatalf("Filtered at t=%v = %v, want %v", s.T, r.Filtered, want)
		}
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, err := New(rawConfig())
	require.NoError(t, err)
	feed(t, tr, sine(1.0, 0.4, 0, 0.05, 5))
	_, _ = tr.AddSample(-1, 0)
	tr.Reset()

	assert.Equal(t, State{Period: 1.2, Amplitude: 0.4}, tr.State())
	assert.Equal(t, 0, tr.RawWindow().Len())
	assert.Equal(t, 0, tr.Rejected())
	_, ok := tr.Last()
	assert.False(t, ok)

	// Timestamps may restart after a reset.
	_, err = tr.AddSample(0, 0)
	assert.NoError(t, err)
}

func TestTracker_IndependentInstances(t *testing.T) {
	a, err := New(rawConfig())
	require.NoError(t, err)
	b, err := New(rawConfig())
	require.NoError(t, err)

	feed(t, a, sine(1.0, 0.4, 0, 0.05, 10))
	assert.Equal(t, State{Period: 1.2, Amplitude: 0.4}, b.State())
	assert.NotEqual(t, a.State(), b.State())
}

func TestTracker_AddSampleDoesNotAllocate(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	ts := 0.0
	allocs := testing.AllocsPerRun(2000, func() {
		ts += 0.1
		_, _ = tr.AddSample(ts, 0.4*math.Sin(2*math.Pi*ts/1.2))
	})
	assert.Zero(t, allocs)
}
