package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/zulandar/logyard/internal/logging"
	"go.uber.org/zap"
)

// Tailer follows a log file and appends each complete line to the store.
type Tailer struct {
	Store      *Store
	Path       string
	TrainingID string
	ConfigID   int
	FromStart  bool // ingest existing content instead of starting at the end
	Logger     *zap.Logger

	// Ready, if set, is closed once the watch is established.
	Ready chan struct{}

	f       *os.File
	r       *bufio.Reader
	offset  int64
	partial string
}

// Run blocks until ctx is cancelled or the watch fails.
func (t *Tailer) Run(ctx context.Context) error {
	if t.Store == nil || t.Path == "" || t.TrainingID == "" {
		return fmt.Errorf("source: tail: store, path and training id are required")
	}
	log := logging.OrNop(t.Logger).With(zap.String("path", t.Path), zap.String("training_id", t.TrainingID))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("source: tail: %w", err)
	}
	defer w.Close()

	// Watch the directory so creation, rotation and truncation are all seen.
	if err := w.Add(filepath.Dir(t.Path)); err != nil {
		return fmt.Errorf("source: tail: watch %s: %w", filepath.Dir(t.Path), err)
	}
	defer t.closeFile()

	if err := t.open(!t.FromStart); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := t.drain(ctx); err != nil {
		return err
	}
	if t.Ready != nil {
		close(t.Ready)
	}
	log.Info("tailing log file")

	target := filepath.Clean(t.Path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				log.Debug("log file moved away")
				t.closeFile()
			case ev.Has(fsnotify.Create):
				t.closeFile()
				if err := t.open(false); err != nil {
					log.Warn("reopen failed", zap.Error(err))
					continue
				}
				fallthrough
			case ev.Has(fsnotify.Write):
				if err := t.drain(ctx); err != nil {
					log.Warn("read failed", zap.Error(err))
				}
			}
		}
	}
}

func (t *Tailer) open(atEnd bool) error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	t.offset = 0
	if atEnd {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return fmt.Errorf("source: tail: seek: %w", err)
		}
		t.offset = off
	}
	t.f = f
	t.r = bufio.NewReader(f)
	t.partial = ""
	return nil
}

func (t *Tailer) closeFile() {
	if t.f != nil {
		t.f.Close()
		t.f = nil
		t.r = nil
	}
}

// drain reads every complete line past the current offset into the store.
// A trailing fragment without a newline is held until the rest arrives.
func (t *Tailer) drain(ctx context.Context) error {
	if t.f == nil {
		if err := t.open(false); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
	}
	if st, err := t.f.Stat(); err == nil && st.Size() < t.offset {
		// Truncated in place: start over.
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("source: tail: seek: %w", err)
		}
		t.offset = 0
		t.r.Reset(t.f)
		t.partial = ""
	}

	var lines []string
	for {
		chunk, err := t.r.ReadString('\n')
		t.offset += int64(len(chunk))
		if err == io.EOF {
			t.partial += chunk
			break
		}
		if err != nil {
			return fmt.Errorf("source: tail: read: %w", err)
		}
		line := strings.TrimRight(t.partial+chunk, "\r\n")
		t.partial = ""
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	_, err := t.Store.Append(ctx, t.TrainingID, t.ConfigID, lines...)
	return err
}
