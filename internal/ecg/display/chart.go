package display

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Chart describes one rendered recording.
type Chart struct {
	Title    string
	Subtitle string
	Points   []Point
	Peaks    []Point
	YLabel   string
}

// RenderHTML writes an interactive line chart with R-peak markers.
func RenderHTML(w io.Writer, c Chart) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: c.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel, NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	data := make([]opts.LineData, 0, len(c.Points))
	for _, p := range c.Points {
		data = append(data, opts.LineData{Value: []interface{}{p.T, p.V}})
	}
	line.AddSeries("ECG", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if len(c.Peaks) > 0 {
		peaks := make([]opts.ScatterData, 0, len(c.Peaks))
		for _, p := range c.Peaks {
			peaks = append(peaks, opts.ScatterData{Value: []interface{}{p.T, p.V}})
		}
		scatter := charts.NewScatter()
		scatter.AddSeries("R peaks", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
		line.Overlap(scatter)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WritePNG draws the recording with gonum/plot and writes a PNG image.
func WritePNG(w io.Writer, c Chart) error {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = c.YLabel

	pts := make(plotter.XYs, len(c.Points))
	for i, pt := range c.Points {
		pts[i] = plotter.XY{X: pt.T, Y: pt.V}
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
	}

	if len(c.Peaks) > 0 {
		peaks := make(plotter.XYs, len(c.Peaks))
		for i, pt := range c.Peaks {
			peaks[i] = plotter.XY{X: pt.T, Y: pt.V}
		}
		sc, err := plotter.NewScatter(peaks)
		if err != nil {
			return fmt.Errorf("failed to build peaks: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
	}

	wt, err := p.WriterTo(14*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
