package tui

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
)

// plotGutter is the room left for the loss labels and the axis.
const plotGutter = 10

// plot renders ys as a line chart roughly width x height cells, with the
// x range of xs as the caption.
func plot(xs, ys []float64, xLabel string, width, height int) string {
	if len(ys) == 0 {
		return "No loss data"
	}
	lo, hi := bounds(xs)
	opts := []asciigraph.Option{
		asciigraph.Width(max(width-plotGutter, 10)),
		asciigraph.Height(max(height-2, 3)),
		asciigraph.Caption(fmt.Sprintf("%s: %.4g to %.4g", xLabel, lo, hi)),
	}
	// A flat series has no range to label; give it one around the value.
	if ylo, yhi := bounds(ys); ylo == yhi {
		opts = append(opts, asciigraph.LowerBound(ylo-0.5), asciigraph.UpperBound(yhi+0.5))
	}
	return asciigraph.Plot(ys, opts...)
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
