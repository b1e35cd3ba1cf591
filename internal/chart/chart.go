// Package chart extracts (step, epoch, loss) samples embedded as JSON objects
// inside log lines and keeps them as a step-ordered series.
package chart

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Point is one loss sample.
type Point struct {
	Step  int     `json:"step"`
	Epoch float64 `json:"epoch"`
	Loss  float64 `json:"loss"`
}

// objectRe matches the first brace-delimited span that contains no closing
// brace, i.e. a flat JSON object.
var objectRe = regexp.MustCompile(`\{[^}]+\}`)

// Project extracts a Point from line. It returns false for lines with no
// embedded object, malformed JSON, or missing/non-numeric fields.
func Project(line string) (Point, bool) {
	if !strings.Contains(line, "{") || !strings.Contains(line, "}") {
		return Point{}, false
	}
	span := objectRe.FindString(line)
	if span == "" {
		return Point{}, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return Point{}, false
	}

	step, ok := field(obj, "step")
	if !ok || step < 0 || step != math.Trunc(step) || step >= float64(math.MaxInt) {
		return Point{}, false
	}
	epoch, ok := field(obj, "epoch")
	if !ok || epoch < 0 {
		return Point{}, false
	}
	loss, ok := field(obj, "loss")
	if !ok {
		return Point{}, false
	}
	return Point{Step: int(step), Epoch: epoch, Loss: loss}, true
}

// field reads key from obj and coerces it to a finite number.
func field(obj map[string]any, key string) (float64, bool) {
	v, present := obj[key]
	if !present {
		return 0, false
	}
	f, ok := toNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toNumber coerces decoded JSON values the way a loosely typed producer
// expects: numbers as-is, numeric strings parsed, booleans as 0/1, null and
// the empty string as 0.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// Stats summarizes a series for display.
type Stats struct {
	Count   int     `json:"count"`
	Current float64 `json:"current"` // loss at the highest step
	Min     float64 `json:"min"`
}

// Series is a step-ordered set of points with unique steps. The first point
// seen for a step wins. A Series is safe for concurrent use.
type Series struct {
	mu     sync.RWMutex
	points []Point
	steps  map[int]struct{}
}

// NewSeries returns an empty series.
func NewSeries() *Series {
	return &Series{steps: make(map[int]struct{})}
}

// Add inserts p unless its step is already present. It reports whether the
// series changed.
func (s *Series) Add(p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.steps[p.Step]; dup {
		return false
	}
	s.steps[p.Step] = struct{}{}
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Step > p.Step })
	s.points = append(s.points, Point{})
	copy(s.points[i+1:], s.points[i:])
	s.points[i] = p
	return true
}

// AddBatch inserts all points with new steps and sorts once. Within the
// batch the earliest point for a step wins. It returns the number added.
func (s *Series) AddBatch(points []Point) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range points {
		if _, dup := s.steps[p.Step]; dup {
			continue
		}
		s.steps[p.Step] = struct{}{}
		s.points = append(s.points, p)
		added++
	}
	if added > 0 {
		sort.SliceStable(s.points, func(i, j int) bool { return s.points[i].Step < s.points[j].Step })
	}
	return added
}

// ProjectLines projects every line and adds the results as one batch.
func (s *Series) ProjectLines(lines []string) int {
	var pts []Point
	for _, line := range lines {
		if p, ok := Project(line); ok {
			pts = append(pts, p)
		}
	}
	if len(pts) == 0 {
		return 0
	}
	return s.AddBatch(pts)
}

// Points returns a copy of the series in step order.
func (s *Series) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Point(nil), s.points...)
}

// Len returns the number of points.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Reset empties the series.
func (s *Series) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = nil
	s.steps = make(map[int]struct{})
}

// Stats returns count, last loss and minimum loss.
func (s *Series) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsOf(s.points)
}

// StatsOf computes Stats over step-ordered points.
func StatsOf(points []Point) Stats {
	if len(points) == 0 {
		return Stats{}
	}
	st := Stats{Count: len(points), Current: points[len(points)-1].Loss, Min: points[0].Loss}
	for _, p := range points[1:] {
		if p.Loss < st.Min {
			st.Min = p.Loss
		}
	}
	return st
}
