package chart

import "fmt"

// Axis selects the chart's x dimension.
type Axis string

const (
	AxisStep  Axis = "step"
	AxisEpoch Axis = "epoch"
)

// ParseAxis accepts "step" or "epoch".
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case AxisStep, AxisEpoch:
		return Axis(s), nil
	}
	return "", fmt.Errorf("chart: unknown axis %q (want step or epoch)", s)
}

// Toggle returns the other axis.
func (a Axis) Toggle() Axis {
	if a == AxisEpoch {
		return AxisStep
	}
	return AxisEpoch
}

// Label is the human-readable axis title.
func (a Axis) Label() string {
	if a == AxisEpoch {
		return "Epoch"
	}
	return "Training Step"
}

// XY projects points onto (x, loss) pairs for the given axis.
func XY(points []Point, axis Axis) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		if axis == AxisEpoch {
			xs[i] = p.Epoch
		} else {
			xs[i] = float64(p.Step)
		}
		ys[i] = p.Loss
	}
	return xs, ys
}
