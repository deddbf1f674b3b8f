package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/simulate"
	"github.com/banshee-data/swing.report/internal/testutil"
)

func peakAt(t, v float64) oscillation.Sample { return oscillation.Sample{T: t, Value: v} }

func handMadeResults() []oscillation.Result {
	return []oscillation.Result{
		{T: 0.0, Raw: 0.0, Predicted: 0.0},
		{T: 1.0, Raw: 0.2, Predicted: 0.3, HasPrediction: true, Event: oscillation.Peak, EventSample: peakAt(0.5, 1)},
		{T: 2.0, Raw: 1.0, Predicted: 1.1, HasPrediction: true, Event: oscillation.Peak, EventSample: peakAt(1.5, 1)},
		{T: 3.0, Raw: 0.0, Predicted: -0.1, HasPrediction: true, Event: oscillation.Nadir, EventSample: peakAt(2.0, -1)},
		{T: 4.0, Raw: -1.0, Predicted: -1.0, HasPrediction: true},
		{T: 5.0, Raw: 0.5, Predicted: 0.8, HasPrediction: true, Event: oscillation.Peak, EventSample: peakAt(2.7, 1)},
	}
}

func TestSummarise(t *testing.T) {
	final := oscillation.State{Period: 1.1, Amplitude: 1, PeakCount: 3}
	s := Summarise(handMadeResults(), final)

	assert.Equal(t, 6, s.Samples)
	assert.Equal(t, 3, s.Peaks)
	assert.Equal(t, 1, s.Nadirs)
	assert.Equal(t, 4, s.Evaluated, "only samples from the second peak on are evaluated")

	testutil.AssertNear(t, "MeanError", s.MeanError, 0.075, 1e-12)
	testutil.AssertNear(t, "RMSE", s.RMSE, math.Sqrt(0.0275), 1e-12)
	testutil.AssertNear(t, "MaxAbsError", s.MaxAbsError, 0.3, 1e-12)
	testutil.AssertNear(t, "Correlation", s.Correlation, 0.9875414397573882, 1e-9)
	testutil.AssertNear(t, "PeriodMean", s.PeriodMean, 1.1, 1e-12)
	testutil.AssertNear(t, "PeriodStdDev", s.PeriodStdDev, math.Sqrt(0.02), 1e-12)
	assert.Equal(t, final, s.Final)
}

func TestSummarise_Empty(t *testing.T) {
	s := Summarise(nil, oscillation.State{})
	assert.Zero(t, s.Samples)
	assert.Zero(t, s.Evaluated)
	assert.Zero(t, s.RMSE)
	assert.Zero(t, s.Correlation)
	assert.False(t, math.IsNaN(s.PeriodMean))
}

func TestSummarise_SimulatedRun(t *testing.T) {
	samples, err := simulate.Swing{Period: 1.0, Amplitude: 0.4}.Generate(0.05, 60)
	require.NoError(t, err)

	cfg := oscillation.DefaultConfig()
	cfg.UseFilter = false
	tracker, err := oscillation.New(cfg)
	require.NoError(t, err)

	results := make([]oscillation.Result, 0, len(samples))
	for _, smp := range samples {
		r, err := tracker.AddSample(smp.T, smp.Value)
		require.NoError(t, err)
		results = append(results, r)
	}

	s := Summarise(results, tracker.State())
	assert.InDelta(t, 59, s.Peaks, 1)
	testutil.AssertNear(t, "PeriodMean", s.PeriodMean, 1.0, 1e-6)
	assert.Greater(t, s.Correlation, 0.7)
	assert.Less(t, s.RMSE, 0.25)

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	assert.Contains(t, buf.String(), "peaks            ")
	assert.Contains(t, buf.String(), "period estimate")
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, "swing", handMadeResults()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "not a PNG")

	err := WritePNG(&buf, "empty", nil)
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swing.png")
	require.NoError(t, SavePNG(path, "swing", handMadeResults()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "Swing session", "session abc", handMadeResults()))
	html := buf.String()
	for _, want := range []string{"Swing session", "measured", "filtered", "predicted", "peak", "nadir", "echarts"} {
		assert.True(t, strings.Contains(html, want), "HTML missing %q", want)
	}
}
