package chart

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Point
		ok   bool
	}{
		{"bare object", `{"step":2,"epoch":1,"loss":0.5}`, Point{2, 1, 0.5}, true},
		{"prefixed", `INFO trainer: {"step": 10, "epoch": 0.5, "loss": 1.25} lr=3e-4`, Point{10, 0.5, 1.25}, true},
		{"string numbers", `{"step":"3","epoch":"1","loss":"0.75"}`, Point{3, 1, 0.75}, true},
		{"extra fields", `{"step":4,"epoch":1,"loss":0.2,"lr":0.001}`, Point{4, 1, 0.2}, true},
		{"null epoch coerces to zero", `{"step":5,"epoch":null,"loss":0.2}`, Point{5, 0, 0.2}, true},
		{"no braces", "step=3 epoch=1 loss=nan", Point{}, false},
		{"nan loss", `{"step":3,"epoch":1,"loss":"nan"}`, Point{}, false},
		{"text loss", `{"step":3,"epoch":1,"loss":"high"}`, Point{}, false},
		{"missing loss", `{"step":3,"epoch":1}`, Point{}, false},
		{"malformed json", `{step:3, epoch:1, loss:0.1}`, Point{}, false},
		{"nested object stops at first brace", `{"metrics":{"step":1,"epoch":1,"loss":1}}`, Point{}, false},
		{"negative step", `{"step":-1,"epoch":1,"loss":0.1}`, Point{}, false},
		{"fractional step", `{"step":1.5,"epoch":1,"loss":0.1}`, Point{}, false},
		{"step beyond int32", `{"step":3000000000,"epoch":9,"loss":0.1}`, Point{3000000000, 9, 0.1}, true},
		{"step beyond int", `{"step":1e19,"epoch":1,"loss":0.1}`, Point{}, false},
		{"array loss", `{"step":1,"epoch":1,"loss":[1]}`, Point{}, false},
		{"empty braces", `done {}`, Point{}, false},
		{"first object wins", `{"a":1} {"step":1,"epoch":1,"loss":1}`, Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Project(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSeries_SortAndFirstWriteWins(t *testing.T) {
	s := NewSeries()
	for _, line := range []string{
		`{"step":2,"epoch":1,"loss":0.5}`,
		`{"step":1,"epoch":1,"loss":0.9}`,
		`{"step":2,"epoch":2,"loss":0.1}`,
	} {
		if p, ok := Project(line); ok {
			s.Add(p)
		}
	}

	want := []Point{{Step: 1, Epoch: 1, Loss: 0.9}, {Step: 2, Epoch: 1, Loss: 0.5}}
	if diff := cmp.Diff(want, s.Points()); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestSeries_AddReportsChange(t *testing.T) {
	s := NewSeries()
	require.True(t, s.Add(Point{Step: 1, Loss: 1}))
	require.False(t, s.Add(Point{Step: 1, Loss: 2}))
	assert.Equal(t, 1, s.Len())
}

func TestSeries_AddBatch(t *testing.T) {
	s := NewSeries()
	s.Add(Point{Step: 5, Loss: 0.5})

	added := s.AddBatch([]Point{
		{Step: 3, Loss: 0.7},
		{Step: 5, Loss: 9},
		{Step: 1, Loss: 0.9},
		{Step: 3, Loss: 9},
	})
	assert.Equal(t, 2, added)

	want := []Point{{Step: 1, Loss: 0.9}, {Step: 3, Loss: 0.7}, {Step: 5, Loss: 0.5}}
	if diff := cmp.Diff(want, s.Points()); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestSeries_ProjectLines(t *testing.T) {
	s := NewSeries()
	n := s.ProjectLines([]string{
		"starting",
		`{"step":0,"epoch":0,"loss":1.2}`,
		"garbage {",
		`{"step":1,"epoch":0,"loss":1.1}`,
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []Point{{0, 0, 1.2}, {1, 0, 1.1}}, s.Points())
}

func TestSeries_ResetAndStats(t *testing.T) {
	s := NewSeries()
	assert.Equal(t, Stats{}, s.Stats())

	s.AddBatch([]Point{{Step: 1, Loss: 0.8}, {Step: 2, Loss: 0.3}, {Step: 3, Loss: 0.4}})
	assert.Equal(t, Stats{Count: 3, Current: 0.4, Min: 0.3}, s.Stats())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Add(Point{Step: 1}), "step 1 should be insertable after reset")
}

func TestSeries_PointsIsCopy(t *testing.T) {
	s := NewSeries()
	s.Add(Point{Step: 1, Loss: 1})
	pts := s.Points()
	pts[0].Loss = 42
	assert.Equal(t, 1.0, s.Points()[0].Loss)
}

func TestAxis(t *testing.T) {
	assert.Equal(t, AxisEpoch, AxisStep.Toggle())
	assert.Equal(t, AxisStep, AxisEpoch.Toggle())

	a, err := ParseAxis("epoch")
	require.NoError(t, err)
	assert.Equal(t, AxisEpoch, a)
	_, err = ParseAxis("time")
	assert.Error(t, err)

	pts := []Point{{Step: 10, Epoch: 0.5, Loss: 2}, {Step: 20, Epoch: 1, Loss: 1}}
	xs, ys := XY(pts, AxisStep)
	assert.Equal(t, []float64{10, 20}, xs)
	assert.Equal(t, []float64{2, 1}, ys)
	xs, _ = XY(pts, AxisEpoch)
	assert.Equal(t, []float64{0.5, 1}, xs)
}
