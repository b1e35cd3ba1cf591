package main

import (
	"strings"
	"testing"
)

func TestSourcePushAndList(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:8080")

	out, err := runCmd(t, "source", "list", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No training runs.") {
		t.Errorf("empty list = %q", out)
	}

	out, err = runCmd(t, "source", "push", "run-a", "one", "two", "--config", cfg)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !strings.Contains(out, "Appended 2 lines to run-a") {
		t.Errorf("push output = %q", out)
	}

	cmd := newRootCmd()
	var buf strings.Builder
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader("from stdin\r\n\nsecond\n"))
	cmd.SetArgs([]string{"source", "push", "run-b", "--config", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("push stdin: %v", err)
	}
	if !strings.Contains(buf.String(), "Appended 2 lines to run-b") {
		t.Errorf("stdin push output = %q", buf.String())
	}

	out, _ = runCmd(t, "source", "list", "--config", cfg)
	if out != "run-a\nrun-b\n" {
		t.Errorf("list = %q", out)
	}
}

func TestSourceServe_TailNeedsTrainingID(t *testing.T) {
	_, err := runCmd(t, "source", "serve", "--tail", "train.log")
	if err == nil || !strings.Contains(err.Error(), "--training-id is required") {
		t.Errorf("error = %v", err)
	}
}

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("a\r\n\nb"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(lines, "|") != "a|b" {
		t.Errorf("lines = %v", lines)
	}
}
