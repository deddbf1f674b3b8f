package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot/plotter"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

// RenderHTML writes an interactive line chart of results to w.
func RenderHTML(w io.Writer, title, subtitle string, results []oscillation.Result) error {
	s := split(results)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "acceleration"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	noSymbol := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	line.AddSeries("measured", lineData(s.measured), noSymbol)
	line.AddSeries("filtered", lineData(s.filtered), noSymbol)
	line.AddSeries("predicted", lineData(s.predicted), noSymbol)

	events := charts.NewScatter()
	events.AddSeries("peak", scatterData(s.peaks), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	events.AddSeries("nadir", scatterData(s.nadirs), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	line.Overlap(events)

	return line.Render(w)
}

func lineData(pts plotter.XYs) []opts.LineData {
	out := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		out = append(out, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}
	return out
}

func scatterData(pts plotter.XYs) []opts.ScatterData {
	out := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		out = append(out, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	return out
}
