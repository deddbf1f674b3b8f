// Package report evaluates and charts tracker output: prediction error
// statistics, a static PNG for recordings and an interactive HTML chart for
// the web UI.
package report

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

// Summary describes how well the predictor followed the measured signal.
// Error statistics cover only samples produced once the tracker had seen two
// peaks and could predict.
type Summary struct {
	Samples int
	Peaks   int
	Nadirs  int

	Evaluated   int
	MeanError   float64
	RMSE        float64
	MaxAbsError float64
	Correlation float64

	// Peak-to-peak intervals of the detected peaks.
	PeriodMean   float64
	PeriodStdDev float64

	Final oscillation.State
}

// Summarise computes a Summary over results in time order. final is the
// tracker state after the last result.
func Summarise(results []oscillation.Result, final oscillation.State) Summary {
	s := Summary{Samples: len(results), Final: final}

	var measured, predicted, peakTimes []float64
	for _, r := range results {
		switch r.Event {
		case oscillation.Peak:
			s.Peaks++
			peakTimes = append(peakTimes, r.EventSample.T)
		case oscillation.Nadir:
			s.Nadirs++
		}
		if s.Peaks >= 2 && r.HasPrediction {
			measured = append(measured, r.Raw)
			predicted = append(predicted, r.Predicted)
		}
	}

	s.Evaluated = len(measured)
	if s.Evaluated > 0 {
		diff := make([]float64, s.Evaluated)
		floats.SubTo(diff, predicted, measured)
		s.MeanError = stat.Mean(diff, nil)
		s.RMSE = floats.Norm(diff, 2) / math.Sqrt(float64(s.Evaluated))
		s.MaxAbsError = floats.Norm(diff, math.Inf(1))
	}
	if s.Evaluated > 1 {
		if c := stat.Correlation(measured, predicted, nil); !math.IsNaN(c) {
			s.Correlation = c
		}
	}

	if len(peakTimes) > 1 {
		intervals := make([]float64, len(peakTimes)-1)
		for i := range intervals {
			intervals[i] = peakTimes[i+1] - peakTimes[i]
		}
		s.PeriodMean = stat.Mean(intervals, nil)
		if len(intervals) > 1 {
			s.PeriodStdDev = stat.StdDev(intervals, nil)
		}
	}
	return s
}

// WriteText prints the summary in the aligned key/value layout used by the
// command line tools.
func (s Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, `samples          %d
peaks            %d
nadirs           %d
evaluated        %d
mean error       %.4f
rmse             %.4f
max |error|      %.4f
correlation      %.4f
peak interval    %.4f ± %.4f s
period estimate  %.4f s
amplitude        %.4f
bias             %.4f
`,
		s.Samples, s.Peaks, s.Nadirs, s.Evaluated,
		s.MeanError, s.RMSE, s.MaxAbsError, s.Correlation,
		s.PeriodMean, s.PeriodStdDev,
		s.Final.Period, s.Final.Amplitude, s.Final.Bias)
	return err
}
