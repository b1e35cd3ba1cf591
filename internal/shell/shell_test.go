package shell

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/stream"
)

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

type fakePublisher struct {
	name, content string
}

func (f *fakePublisher) Publish(_ context.Context, name, content string) (string, error) {
	f.name, f.content = name, content
	return "https://gist.example/" + name, nil
}

// newLoadedShell returns a shell whose controller holds the snapshot lines
// served for training t1.
func newLoadedShell(t *testing.T, lines string, opts Options) *Shell {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"logs":%s}`, lines)
	}))
	t.Cleanup(srv.Close)

	c, err := stream.NewController(stream.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.Update("t1", false)
	require.NoError(t, c.Refresh(context.Background()))
	return New(c, opts)
}

func TestShell_TextAndDownload(t *testing.T) {
	s := newLoadedShell(t, `["a","b"]`, Options{})
	assert.Equal(t, "a\nb", s.Text())

	dir := t.TempDir()
	path, err := s.Download(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "training-log-t1.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(data))
}

func TestShell_FileNameWithoutTraining(t *testing.T) {
	c, err := stream.NewController(stream.Options{BaseURL: "http://x"})
	require.NoError(t, err)
	defer c.Close()

	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.FixedZone("X", 3600))
	s := New(c, Options{Now: func() time.Time { return now }})
	assert.Equal(t, "training-log-2026-05-04T02-02-01.000Z.txt", s.FileName())

	_, err = s.Download(t.TempDir())
	assert.ErrorIs(t, err, ErrNoLogs)
}

func TestShell_FileNameSanitized(t *testing.T) {
	c, err := stream.NewController(stream.Options{BaseURL: "http://x"})
	require.NoError(t, err)
	defer c.Close()
	c.Update("../etc/passwd", false)

	assert.Equal(t, "training-log-..-etc-passwd.txt", New(c, Options{}).FileName())
}

func TestShell_Copy(t *testing.T) {
	clip := &fakeClipboard{}
	s := newLoadedShell(t, `["x","y"]`, Options{Clipboard: clip})
	require.NoError(t, s.Copy())
	assert.Equal(t, "x\ny", clip.text)

	clip.err = errors.New("no display")
	err := s.Copy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")

	s.Clear()
	assert.ErrorIs(t, s.Copy(), ErrNoLogs)
}

func TestShell_Share(t *testing.T) {
	s := newLoadedShell(t, `["x"]`, Options{})
	_, err := s.Share(context.Background())
	assert.ErrorIs(t, err, ErrShareDisabled)

	pub := &fakePublisher{}
	s = newLoadedShell(t, `["x","y"]`, Options{Publisher: pub})
	u, err := s.Share(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://gist.example/training-log-t1.txt", u)
	assert.Equal(t, "x\ny", pub.content)
}

func TestShell_ShareEmptyBuffer(t *testing.T) {
	s := newLoadedShell(t, `["x"]`, Options{})
	s.Clear()
	_, err := s.Share(context.Background())
	assert.ErrorIs(t, err, ErrNoLogs)

	pub := &fakePublisher{}
	s = newLoadedShell(t, `["x"]`, Options{Publisher: pub})
	s.Clear()
	_, err = s.Share(context.Background())
	assert.ErrorIs(t, err, ErrNoLogs)
	assert.Empty(t, pub.name)
}

func TestShell_ClearKeepsSeriesEmpty(t *testing.T) {
	s := newLoadedShell(t, `["{\"step\":1,\"epoch\":0,\"loss\":0.5}"]`, Options{})
	require.Len(t, s.Controller().State().Points, 1)
	s.Clear()
	st := s.Controller().State()
	assert.Empty(t, st.Lines)
	assert.Empty(t, st.Points)
}

func TestShell_Axis(t *testing.T) {
	c, err := stream.NewController(stream.Options{BaseURL: "http://x"})
	require.NoError(t, err)
	defer c.Close()

	s := New(c, Options{})
	assert.Equal(t, chart.AxisStep, s.Axis())
	assert.Equal(t, chart.AxisEpoch, s.ToggleAxis())
	assert.Equal(t, chart.AxisStep, s.ToggleAxis())
	s.SetAxis(chart.AxisEpoch)
	assert.Equal(t, chart.AxisEpoch, s.Axis())
}

func TestStatus(t *testing.T) {
	tests := []struct {
		st   stream.State
		want string
	}{
		{stream.State{}, "No logs available"},
		{stream.State{Training: true, Loading: true}, "Connecting..."},
		{stream.State{Training: true}, "Training in progress"},
		{stream.State{Training: true, Outcome: classify.Completed}, "Training completed"},
		{stream.State{Outcome: classify.Failed, Lines: []string{"x"}}, "Training failed"},
		{stream.State{Lines: []string{"a", "b"}}, "2 lines"},
	}
	for _, tt := range tests {
		if got := Status(tt.st); got != tt.want {
			t.Errorf("Status(%+v) = %q, want %q", tt.st, got, tt.want)
		}
	}
}
