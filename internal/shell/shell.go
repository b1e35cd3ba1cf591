// Package shell holds the user-invocable actions shared by the terminal and
// web front ends: refresh, download, copy, clear, axis toggle and share.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/share"
	"github.com/zulandar/logyard/internal/stream"
)

var (
	// ErrNoLogs is returned by actions that need a non-empty buffer.
	ErrNoLogs = errors.New("shell: no logs available")
	// ErrShareDisabled is returned by Share when no publisher is configured.
	ErrShareDisabled = errors.New("shell: sharing is not configured")
)

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Options configures a Shell.
type Options struct {
	Clipboard Clipboard       // defaults to SystemClipboard
	Publisher share.Publisher // nil disables Share
	Axis      chart.Axis
	Now       func() time.Time
}

// Shell wraps a Controller with the presentation actions. It holds no log
// data of its own beyond the chart axis.
type Shell struct {
	c    *stream.Controller
	clip Clipboard
	pub  share.Publisher
	now  func() time.Time

	mu   sync.Mutex
	axis chart.Axis
}

// New returns a Shell over c.
func New(c *stream.Controller, opts Options) *Shell {
	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	axis := opts.Axis
	if axis == "" {
		axis = chart.AxisStep
	}
	return &Shell{c: c, clip: opts.Clipboard, pub: opts.Publisher, now: opts.Now, axis: axis}
}

// Controller returns the wrapped controller.
func (s *Shell) Controller() *stream.Controller { return s.c }

// Refresh triggers a manual snapshot fetch.
func (s *Shell) Refresh(ctx context.Context) error {
	return s.c.Refresh(ctx)
}

// Text returns the buffer joined by newlines.
func (s *Shell) Text() string {
	return strings.Join(s.c.Lines(), "\n")
}

// FileName names the downloaded artifact after the training id, or the
// current UTC time when none is tracked.
func (s *Shell) FileName() string {
	if id := s.c.TrainingID(); id != "" {
		return "training-log-" + sanitize(id) + ".txt"
	}
	ts := s.now().UTC().Format("2006-01-02T15:04:05.000Z")
	return "training-log-" + strings.ReplaceAll(ts, ":", "-") + ".txt"
}

// Download writes the buffer into dir and returns the file path.
func (s *Shell) Download(dir string) (string, error) {
	text, err := s.nonEmptyText()
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, s.FileName())
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("shell: download: %w", err)
	}
	return path, nil
}

// Copy places the buffer on the clipboard.
func (s *Shell) Copy() error {
	text, err := s.nonEmptyText()
	if err != nil {
		return err
	}
	if err := s.clip.WriteAll(text); err != nil {
		return fmt.Errorf("shell: copy: %w", err)
	}
	return nil
}

// Share publishes the buffer and returns its URL.
func (s *Shell) Share(ctx context.Context) (string, error) {
	text, err := s.nonEmptyText()
	if err != nil {
		return "", err
	}
	if s.pub == nil {
		return "", ErrShareDisabled
	}
	return s.pub.Publish(ctx, s.FileName(), text)
}

// Clear empties the local buffer and series. A live transport keeps running.
func (s *Shell) Clear() { s.c.Clear() }

// DismissError hides the current error banner.
func (s *Shell) DismissError() { s.c.DismissError() }

// Axis returns the chart's x axis.
func (s *Shell) Axis() chart.Axis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axis
}

// SetAxis sets the chart's x axis.
func (s *Shell) SetAxis(a chart.Axis) {
	s.mu.Lock()
	s.axis = a
	s.mu.Unlock()
}

// ToggleAxis flips between step and epoch and returns the new axis.
func (s *Shell) ToggleAxis() chart.Axis {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axis = s.axis.Toggle()
	return s.axis
}

func (s *Shell) nonEmptyText() (string, error) {
	lines := s.c.Lines()
	if len(lines) == 0 {
		return "", ErrNoLogs
	}
	return strings.Join(lines, "\n"), nil
}

// Status is the one-line summary shown above the log.
func Status(st stream.State) string {
	switch {
	case st.Outcome == classify.Failed:
		return "Training failed"
	case st.Outcome == classify.Completed:
		return "Training completed"
	case st.Training && st.Loading:
		return "Connecting..."
	case st.Training:
		return "Training in progress"
	case len(st.Lines) == 0:
		return "No logs available"
	default:
		return fmt.Sprintf("%d lines", len(st.Lines))
	}
}

// sanitize keeps training ids from escaping the download directory.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, id)
}
