package report

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

var (
	measuredColour  = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	filteredColour  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	predictedColour = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	peakColour      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	nadirColour     = color.RGBA{R: 148, G: 103, B: 189, A: 255}
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// series splits results into the plotted lines and event markers.
type series struct {
	measured, filtered, predicted plotter.XYs
	peaks, nadirs                 plotter.XYs
}

func split(results []oscillation.Result) series {
	s := series{
		measured:  make(plotter.XYs, 0, len(results)),
		filtered:  make(plotter.XYs, 0, len(results)),
		predicted: make(plotter.XYs, 0, len(results)),
	}
	for _, r := range results {
		s.measured = append(s.measured, plotter.XY{X: r.T, Y: r.Raw})
		s.filtered = append(s.filtered, plotter.XY{X: r.T, Y: r.Filtered})
		if r.HasPrediction {
			s.predicted = append(s.predicted, plotter.XY{X: r.T, Y: r.Predicted})
		}
		switch r.Event {
		case oscillation.Peak:
			s.peaks = append(s.peaks, plotter.XY{X: r.EventSample.T, Y: r.EventSample.Value})
		case oscillation.Nadir:
			s.nadirs = append(s.nadirs, plotter.XY{X: r.EventSample.T, Y: r.EventSample.Value})
		}
	}
	return s
}

func newPlot(title string, results []oscillation.Result) (*plot.Plot, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Acceleration"
	p.Add(plotter.NewGrid())

	s := split(results)
	lines := []struct {
		name   string
		pts    plotter.XYs
		colour color.Color
	}{
		{"measured", s.measured, measuredColour},
		{"filtered", s.filtered, filteredColour},
		{"predicted", s.predicted, predictedColour},
	}
	for _, l := range lines {
		if len(l.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.pts)
		if err != nil {
			return nil, err
		}
		line.Color = l.colour
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(l.name, line)
	}

	markers := []struct {
		name   string
		pts    plotter.XYs
		colour color.Color
		shape  draw.GlyphDrawer
	}{
		{"peak", s.peaks, peakColour, draw.TriangleGlyph{}},
		{"nadir", s.nadirs, nadirColour, draw.CircleGlyph{}},
	}
	for _, m := range markers {
		if len(m.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(m.pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = m.colour
		sc.GlyphStyle.Shape = m.shape
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(m.name, sc)
	}
	p.Legend.Top = true
	return p, nil
}

// WritePNG renders measured, filtered and predicted series with event
// markers as a PNG.
func WritePNG(w io.Writer, title string, results []oscillation.Result) error {
	p, err := newPlot(title, results)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the chart produced by WritePNG to path.
func SavePNG(path, title string, results []oscillation.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, title, results); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return f.Close()
}
