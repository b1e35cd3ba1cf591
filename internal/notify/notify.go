// Package notify posts a message to chat when a followed training run
// completes or fails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/logging"
	"github.com/zulandar/logyard/internal/stream"
	"go.uber.org/zap"
)

// lastLineCount is how many trailing log lines an Event carries.
const lastLineCount = 5

// Event describes a training run that reached a terminal outcome.
type Event struct {
	TrainingID string
	SessionID  string
	Outcome    classify.Outcome
	Lines      int      // total buffered lines
	LastLines  []string // tail of the buffer, oldest first
	Points     int
	Loss       chart.Stats
	At         time.Time
}

// NewEvent builds an Event from a finished session and the controller state
// observed after it ended.
func NewEvent(s *stream.Session, st stream.State) Event {
	ev := Event{
		TrainingID: st.TrainingID,
		Outcome:    st.Outcome,
		Lines:      len(st.Lines),
		Points:     len(st.Points),
		Loss:       chart.StatsOf(st.Points),
		At:         time.Now().UTC(),
	}
	if s != nil {
		ev.TrainingID = s.TrainingID
		ev.SessionID = s.ID
		if o := s.Outcome(); o.Terminal() {
			ev.Outcome = o
		}
	}
	tail := st.Lines
	if len(tail) > lastLineCount {
		tail = tail[len(tail)-lastLineCount:]
	}
	ev.LastLines = append([]string(nil), tail...)
	return ev
}

// Title is the one-line headline used by every channel.
func (e Event) Title() string {
	switch e.Outcome {
	case classify.Failed:
		return fmt.Sprintf("Training %s failed", e.TrainingID)
	case classify.Completed:
		return fmt.Sprintf("Training %s completed", e.TrainingID)
	default:
		return fmt.Sprintf("Training %s is %s", e.TrainingID, e.Outcome)
	}
}

// Summary renders counts and loss on one line.
func (e Event) Summary() string {
	s := fmt.Sprintf("%d lines, %d points", e.Lines, e.Points)
	if e.Loss.Count > 0 {
		s += fmt.Sprintf(", current loss %.4f, min loss %.4f", e.Loss.Current, e.Loss.Min)
	}
	return s
}

// Tail joins the trailing lines for a code block.
func (e Event) Tail() string {
	return strings.Join(e.LastLines, "\n")
}

// Notifier delivers an Event to one destination.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an Event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultTimeout bounds a single dispatch.
const DefaultTimeout = 10 * time.Second

// Dispatcher sends events best-effort: failures are logged and dropped.
type Dispatcher struct {
	n       Notifier
	log     *zap.Logger
	timeout time.Duration
}

// NewDispatcher wraps n. A nil n yields a dispatcher that does nothing.
func NewDispatcher(n Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{n: n, log: logging.OrNop(log), timeout: DefaultTimeout}
}

// Enabled reports whether any destination is configured.
func (d *Dispatcher) Enabled() bool {
	if d == nil || d.n == nil {
		return false
	}
	if m, ok := d.n.(Multi); ok {
		return len(m) > 0
	}
	return true
}

// Send delivers ev, logging instead of returning any failure.
func (d *Dispatcher) Send(ctx context.Context, ev Event) {
	if !d.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.n.Notify(ctx, ev); err != nil {
		d.log.Warn("notification failed",
			zap.String("training_id", ev.TrainingID),
			zap.Stringer("outcome", ev.Outcome),
			zap.Error(err))
		return
	}
	d.log.Info("notification sent",
		zap.String("training_id", ev.TrainingID),
		zap.Stringer("outcome", ev.Outcome))
}

// Hook returns a controller hook that sends an Event for the session using
// the controller's state at the time the hook runs.
func (d *Dispatcher) Hook(c *stream.Controller) func(*stream.Session) {
	return func(s *stream.Session) {
		d.Send(context.Background(), NewEvent(s, c.State()))
	}
}
