package main

import (
	"testing"

	"github.com/zulandar/logyard/internal/chart"
)

func TestFormatStats(t *testing.T) {
	tests := []struct {
		in   chart.Stats
		want string
	}{
		{chart.Stats{}, "No loss data"},
		{chart.Stats{Count: 3, Current: 0.5, Min: 0.25}, "3 points, current loss 0.5000, min loss 0.2500"},
	}
	for _, tt := range tests {
		if got := formatStats(tt.in); got != tt.want {
			t.Errorf("formatStats(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSelection(t *testing.T) {
	if got := formatSelection(nil); got != "(not set)" {
		t.Errorf("nil = %q", got)
	}
	v := 4
	if got := formatSelection(&v); got != "4" {
		t.Errorf("4 = %q", got)
	}
}
