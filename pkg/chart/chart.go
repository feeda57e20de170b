// Package chart renders the scatter plots written next to the CSV outputs.
package chart

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Series is one named set of points.
type Series struct {
	Name string
	X, Y []float64
}

// Scatter describes a scatter plot with an optional y = x reference line.
type Scatter struct {
	Title    string
	XLabel   string
	YLabel   string
	Identity bool
	Series   []Series
}

// Save writes the plot to path. The format follows the file extension.
func (s Scatter) Save(path string) error {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel
	p.Add(plotter.NewGrid())

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, ser := range s.Series {
		if len(ser.X) != len(ser.Y) {
			return errors.NewDimensionError("chart.Save", len(ser.X), len(ser.Y), 0)
		}
		pts := make(plotter.XYs, 0, len(ser.X))
		for j := range ser.X {
			if math.IsNaN(ser.X[j]) || math.IsNaN(ser.Y[j]) || math.IsInf(ser.Y[j], 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: ser.X[j], Y: ser.Y[j]})
			lo = math.Min(lo, math.Min(ser.X[j], ser.Y[j]))
			hi = math.Max(hi, math.Max(ser.X[j], ser.Y[j]))
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrapf(err, "failed to build series %s", ser.Name)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = plotutil.Shape(i)
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		if ser.Name != "" {
			p.Legend.Add(ser.Name, sc)
		}
	}

	if s.Identity && lo < hi {
		line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
		if err != nil {
			return errors.Wrap(err, "failed to build reference line")
		}
		line.Color = color.Gray{Y: 128}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}
