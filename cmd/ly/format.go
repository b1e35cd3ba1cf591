package main

import (
	"fmt"

	"github.com/zulandar/logyard/internal/chart"
)

// formatStats summarises a loss series on one line.
func formatStats(s chart.Stats) string {
	if s.Count == 0 {
		return "No loss data"
	}
	return fmt.Sprintf("%d points, current loss %.4f, min loss %.4f", s.Count, s.Current, s.Min)
}

// formatSelection renders a stored id, or "(not set)".
func formatSelection(id *int) string {
	if id == nil {
		return "(not set)"
	}
	return fmt.Sprintf("%d", *id)
}
