package dashboard

import (
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/shell"
	"github.com/zulandar/logyard/internal/stream"
)

// view is the JSON document the page renders from.
type view struct {
	stream.State
	Status    string      `json:"status"`
	Axis      chart.Axis  `json:"axis"`
	AxisLabel string      `json:"axis_label"`
	Stats     chart.Stats `json:"stats"`
	X         []float64   `json:"x"`
	Y         []float64   `json:"y"`
}

func buildView(sh *shell.Shell) view {
	st := sh.Controller().State()
	axis := sh.Axis()
	xs, ys := chart.XY(st.Points, axis)
	if xs == nil {
		xs, ys = []float64{}, []float64{}
	}
	return view{
		State:     st,
		Status:    shell.Status(st),
		Axis:      axis,
		AxisLabel: axis.Label(),
		Stats:     chart.StatsOf(st.Points),
		X:         xs,
		Y:         ys,
	}
}
