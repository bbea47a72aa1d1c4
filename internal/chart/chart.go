// Package chart draws the terminal-price distributions under the risk-neutral
// and the shifted sampling measures, with the strike marked, so the effect of
// the importance-sampling shift can be inspected.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Bins is the number of histogram bins per distribution.
const Bins = 80

// tailQuantile bounds the plotted range; the lognormal right tail would
// otherwise flatten both histograms.
const tailQuantile = 0.999

var (
	naiveColor   = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	shiftedColor = color.RGBA{R: 255, G: 127, B: 14, A: 160}
	strikeColor  = color.RGBA{R: 200, A: 255}
)

// Distributions plots normalized histograms of naive and shifted terminal
// prices and a vertical line at the strike.
func Distributions(naive, shifted []float64, strike, theta float64) (*plot.Plot, error) {
	if len(naive) == 0 || len(shifted) == 0 {
		return nil, errors.New("chart: both samples must be non-empty")
	}

	upper := max(quantile(naive, tailQuantile), quantile(shifted, tailQuantile), strike*1.1)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Terminal price distribution (shift θ = %.4f)", theta)
	p.X.Label.Text = "S_T"
	p.Y.Label.Text = "density"
	p.Add(plotter.NewGrid())

	hNaive, err := histogram(naive, upper, naiveColor)
	if err != nil {
		return nil, err
	}
	hShifted, err := histogram(shifted, upper, shiftedColor)
	if err != nil {
		return nil, err
	}
	p.Add(hNaive, hShifted)
	p.Legend.Add("risk-neutral", hNaive)
	p.Legend.Add("shifted", hShifted)
	p.Legend.Top = true

	top := max(peak(hNaive), peak(hShifted))
	line, err := plotter.NewLine(plotter.XYs{{X: strike, Y: 0}, {X: strike, Y: top * 1.05}})
	if err != nil {
		return nil, err
	}
	line.Color = strikeColor
	line.Width = vg.Points(2)
	line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("strike K = %g", strike), line)

	return p, nil
}

// Save writes the plot; the format follows the file extension (png, svg,
// pdf, ...).
func Save(p *plot.Plot, path string) error {
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}

func histogram(xs []float64, upper float64, c color.Color) (*plotter.Histogram, error) {
	v := make(plotter.Values, 0, len(xs))
	for _, x := range xs {
		if x <= upper {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return nil, errors.New("chart: no samples below plotted range")
	}
	h, err := plotter.NewHist(v, Bins)
	if err != nil {
		return nil, err
	}
	h.Normalize(1)
	h.FillColor = c
	h.LineStyle.Width = vg.Length(0)
	return h, nil
}

func peak(h *plotter.Histogram) float64 {
	var m float64
	for _, b := range h.Bins {
		m = max(m, b.Weight)
	}
	return m
}

func quantile(xs []float64, q float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}
