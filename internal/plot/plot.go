// Package plot renders trajectory charts as PNG images.
package plot

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/kinematics"
)

// Series names a chart that can be drawn from a simulation result.
type Series string

const (
	Position Series = "position"
	Velocity Series = "velocity"
)

// ErrUnknownSeries is returned for a series name other than Position or Velocity.
var ErrUnknownSeries = errors.New("unknown plot series")

// Chart size and resolution.
const (
	widthIn  = 8.0
	heightIn = 5.0
	dpi      = 96
)

// ParseSeries returns the series called name.
func ParseSeries(name string) (Series, error) {
	switch s := Series(name); s {
	case Position, Velocity:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
}

// WriteSeries draws one series of res against time and writes it to w as PNG.
// Station arrivals are marked on the position chart.
func WriteSeries(w io.Writer, res engine.SimulationResult, s Series) error {
	var (
		p   *plot.Plot
		err error
	)
	switch s {
	case Position:
		p, err = linePlot("Position", "time (s)", "position (m)", res.Time, res.Position)
		if err == nil {
			err = markArrivals(p, res)
		}
	case Velocity:
		p, err = linePlot("Velocity", "time (s)", "velocity (m/s)", res.Time, res.Velocity)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSeries, s)
	}
	if err != nil {
		return err
	}
	return writePNG(p, w)
}

// WriteCurve draws an acceleration curve in km/h against m/s² and writes it to w as PNG.
func WriteCurve(w io.Writer, data kinematics.CurveData) error {
	p, err := linePlot("Acceleration curve", "velocity (km/h)", "acceleration (m/s²)", data.Velocity, data.Acceleration)
	if err != nil {
		return err
	}
	return writePNG(p, w)
}

// SaveTrajectory writes position.png and velocity.png for res into dir.
func SaveTrajectory(dir string, res engine.SimulationResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	var written []string
	for _, s := range []Series{Position, Velocity} {
		path := filepath.Join(dir, string(s)+".png")
		if err := saveFile(path, func(w io.Writer) error { return WriteSeries(w, res, s) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	return bw.Flush()
}

func linePlot(title, xlabel, ylabel string, xs, ys []float64) (*plot.Plot, error) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return nil, fmt.Errorf("plot data invalid")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	return p, nil
}

func markArrivals(p *plot.Plot, res engine.SimulationResult) error {
	if len(res.Schedule) == 0 {
		return nil
	}
	index := make(map[float64]float64, len(res.Time))
	for i, t := range res.Time {
		index[t] = res.Position[i]
	}

	pts := make(plotter.XYs, 0, len(res.Schedule))
	for _, e := range res.Schedule {
		if pos, ok := index[e.ArrivalTime]; ok {
			pts = append(pts, plotter.XY{X: e.ArrivalTime, Y: pos})
		}
	}
	if len(pts) == 0 {
		return nil
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(3)
	sc.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(sc)
	return nil
}

func writePNG(p *plot.Plot, w io.Writer) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(w); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return nil
}
