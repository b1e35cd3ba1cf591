// Package stream follows a training run's log over a live connection. It
// picks a transport (event stream, then websocket, then polling), keeps an
// ordered de-duplicated line buffer and loss series, and closes the
// connection once the log shows the run has completed or failed.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/logging"
	"go.uber.org/zap"
)

// ErrNoTraining is returned by Refresh when no training id is tracked.
var ErrNoTraining = errors.New("stream: no training id")

// DefaultConfigID is used when no configuration is selected.
const DefaultConfigID = 1

// Options configures a Controller.
type Options struct {
	BaseURL    string // training-logs endpoint root
	ConfigID   int
	Transports []Transport // tiers in order of preference
	Snapshot   *SnapshotClient
	Classifier *classify.Classifier
	Logger     *zap.Logger

	// Hooks run on their own goroutine and may call back into the Controller.
	OnTrainingComplete func(*Session)
	OnTrainingError    func(*Session)
	OnError            func(msg string)
}

// State is a point-in-time copy of everything the controller exposes.
type State struct {
	TrainingID string           `json:"training_id"`
	SessionID  string           `json:"session_id,omitempty"`
	Training   bool             `json:"training"`
	Lines      []string         `json:"lines"`
	Points     []chart.Point    `json:"points"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
	Outcome    classify.Outcome `json:"outcome"`
	Transport  string           `json:"transport,omitempty"`
}

// Controller maintains zero or one live session for a (trainingID,
// isTraining) pair and owns the log buffer and loss series.
type Controller struct {
	opts       Options
	log        *zap.Logger
	classifier *classify.Classifier
	snapshot   *SnapshotClient

	updateMu sync.Mutex // serializes session changes

	mu         sync.Mutex
	trainingID string
	training   bool
	configID   int
	lines      []string
	seen       map[string]struct{}
	series     *chart.Series
	connecting bool // a session is waiting for its transport to open
	refreshing int  // manual refreshes in flight
	errMsg     string
	outcome    classify.Outcome
	transport  string
	sess       *Session
	finished   map[string]classify.Outcome
	closed     bool

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewController builds a Controller. With no transports configured it uses
// the full SSE → socket → poll ladder.
func NewController(opts Options) (*Controller, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("stream: base url is required")
	}
	if opts.Snapshot == nil {
		opts.Snapshot = &SnapshotClient{}
	}
	if len(opts.Transports) == 0 {
		tr, err := BuildTransports(nil, BuildOpts{Snapshot: opts.Snapshot, Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
		opts.Transports = tr
	}
	if opts.ConfigID <= 0 {
		opts.ConfigID = DefaultConfigID
	}
	cl := opts.Classifier
	if cl == nil {
		cl = classify.New(nil, nil)
	}
	return &Controller{
		opts:       opts,
		log:        logging.OrNop(opts.Logger),
		classifier: cl,
		snapshot:   opts.Snapshot,
		configID:   opts.ConfigID,
		seen:       make(map[string]struct{}),
		series:     chart.NewSeries(),
		finished:   make(map[string]classify.Outcome),
		subs:       make(map[int]chan struct{}),
	}, nil
}

// Update applies a new (trainingID, isTraining) pair. It returns the live
// session, or nil when none should run. Any previous session's transport
// has fully shut down by the time Update returns.
func (c *Controller) Update(trainingID string, isTraining bool) *Session {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()
	return c.apply(trainingID, isTraining, false)
}

// SetConfigID changes the config id sent to the stream endpoint. A live
// session is restarted against the new id.
func (c *Controller) SetConfigID(id int) *Session {
	if id <= 0 {
		id = DefaultConfigID
	}
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	c.mu.Lock()
	changed := c.configID != id
	c.configID = id
	trainingID, training := c.trainingID, c.training
	c.mu.Unlock()
	return c.apply(trainingID, training, changed)
}

func (c *Controller) apply(trainingID string, isTraining, restart bool) *Session {
	want := trainingID != "" && isTraining

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	cur := c.sess
	if cur != nil && want && !restart && cur.TrainingID == trainingID {
		c.mu.Unlock()
		return cur
	}
	c.sess = nil
	idChanged := trainingID != c.trainingID
	c.trainingID = trainingID
	c.training = isTraining
	c.mu.Unlock()

	if cur != nil {
		cur.stop()
		c.log.Debug("session closed", zap.String("session", cur.ID), zap.String("training_id", cur.TrainingID))
	}

	c.mu.Lock()
	if idChanged && trainingID != "" {
		c.resetLocked()
		c.errMsg = ""
		c.outcome = classify.Running
	}
	if !want {
		c.connecting = false
		c.transport = ""
		c.mu.Unlock()
		c.notify()
		return nil
	}
	if o, ok := c.finished[trainingID]; ok {
		// A terminal outcome was already observed; do not reconnect.
		c.outcome = o
		c.connecting = false
		c.transport = ""
		c.mu.Unlock()
		c.notify()
		return nil
	}
	c.resetLocked()
	c.errMsg = ""
	c.outcome = classify.Running
	c.connecting = true
	sess := newSession(trainingID, c.configID)
	c.sess = sess
	c.mu.Unlock()

	c.log.Info("session started",
		zap.String("session", sess.ID),
		zap.String("training_id", trainingID),
		zap.Int("config_id", sess.ConfigID))
	go c.run(sess)
	c.notify()
	return sess
}

// run walks the transport tiers until the session is cancelled or every tier
// has given up.
func (c *Controller) run(s *Session) {
	defer close(s.exited)

	target := Target{BaseURL: c.opts.BaseURL, TrainingID: s.TrainingID, ConfigID: s.ConfigID}
	for i, tr := range c.opts.Transports {
		if s.ctx.Err() != nil {
			return
		}
		c.setTransport(s, tr.Name())
		sink := &sessionSink{c: c, s: s, name: tr.Name()}

		err := tr.Run(s.ctx, target, sink)
		if s.ctx.Err() != nil {
			return
		}
		next := ""
		if i+1 < len(c.opts.Transports) {
			next = c.opts.Transports[i+1].Name()
		}
		if err != nil {
			c.log.Warn("transport failed",
				zap.String("session", s.ID),
				zap.String("transport", tr.Name()),
				zap.String("fallback", next),
				zap.Error(err))
			c.setError(s, fmt.Sprintf("%s connection error: %v", tr.Name(), err))
		} else {
			c.log.Info("transport closed by remote",
				zap.String("session", s.ID),
				zap.String("transport", tr.Name()),
				zap.String("fallback", next))
		}
	}

	c.mu.Lock()
	if c.sess == s {
		c.connecting = false
		c.transport = ""
	}
	c.mu.Unlock()
	c.notify()
}

// sessionSink routes transport callbacks to the controller, tagged with the
// session they belong to.
type sessionSink struct {
	c    *Controller
	s    *Session
	name string
}

func (k *sessionSink) Opened() {
	k.c.log.Debug("transport opened", zap.String("session", k.s.ID), zap.String("transport", k.name))
	k.c.mu.Lock()
	if k.c.sess != k.s {
		k.c.mu.Unlock()
		return
	}
	k.c.connecting = false
	k.c.mu.Unlock()
	k.c.notify()
}

func (k *sessionSink) Deliver(ch Chunk) {
	if k.s.ctx.Err() != nil {
		return
	}
	lines, batch, err := ch.Normalize()
	if err != nil {
		k.c.log.Debug("skipping payload", zap.String("transport", k.name), zap.Error(err))
		return
	}
	k.c.ingest(k.s, k.s.TrainingID, lines, batch)
}

func (k *sessionSink) Report(err error) {
	k.c.log.Warn("transport error", zap.String("transport", k.name), zap.Error(err))
	k.c.mu.Lock()
	if k.c.sess == k.s {
		k.c.connecting = false
	}
	k.c.mu.Unlock()
	k.c.setError(k.s, "Error fetching logs: "+err.Error())
}

// ingest appends unseen lines in order, projects them onto the series and,
// for a live session, classifies them as one pass. s may be nil for a
// refresh without a live session.
func (c *Controller) ingest(s *Session, trainingID string, lines []string, batch bool) {
	c.mu.Lock()
	if c.trainingID != trainingID || c.sess != s {
		c.mu.Unlock()
		return
	}
	var fresh []string
	for _, line := range lines {
		if _, dup := c.seen[line]; dup {
			continue
		}
		c.seen[line] = struct{}{}
		c.lines = append(c.lines, line)
		fresh = append(fresh, line)
	}
	if len(fresh) == 0 {
		c.mu.Unlock()
		return
	}

	if batch {
		c.series.ProjectLines(fresh)
	} else {
		for _, line := range fresh {
			if p, ok := chart.Project(line); ok {
				c.series.Add(p)
			}
		}
	}

	// Once a session has ended its lines no longer need classifying.
	outcome := classify.Running
	if s != nil && !s.Outcome().Terminal() {
		outcome = c.classifier.ClassifyLines(fresh).Outcome()
	}
	fired := false
	if outcome.Terminal() {
		c.finished[trainingID] = outcome
		c.outcome = outcome
		c.connecting = false
		c.transport = ""
		fired = s.finish(outcome)
	}
	c.mu.Unlock()
	c.notify()

	if !fired {
		return
	}
	c.log.Info("training ended",
		zap.String("session", s.ID),
		zap.String("training_id", s.TrainingID),
		zap.Stringer("outcome", outcome))
	hook := c.opts.OnTrainingComplete
	if outcome == classify.Failed {
		hook = c.opts.OnTrainingError
	}
	if hook != nil {
		go hook(s)
	}
}

// Refresh fetches the full snapshot for the tracked training id and merges
// it into the buffer, independent of the live transport.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	trainingID, s, configID := c.trainingID, c.sess, c.configID
	if trainingID == "" {
		c.mu.Unlock()
		return ErrNoTraining
	}
	c.refreshing++
	c.mu.Unlock()
	c.notify()

	lines, err := c.snapshot.Fetch(ctx, Target{BaseURL: c.opts.BaseURL, TrainingID: trainingID, ConfigID: configID})

	c.mu.Lock()
	c.refreshing--
	current := c.trainingID == trainingID
	if current {
		if err != nil {
			c.errMsg = "Error fetching logs: " + err.Error()
		} else {
			c.errMsg = ""
		}
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.log.Warn("refresh failed", zap.String("training_id", trainingID), zap.Error(err))
		if current && c.opts.OnError != nil {
			go c.opts.OnError(err.Error())
		}
		return fmt.Errorf("stream: refresh %s: %w", trainingID, err)
	}
	c.ingest(s, trainingID, lines, true)
	return nil
}

// Clear empties the buffer and series. The transport is left running.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

// DismissError clears the error message.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()
}

// Session returns the live session, if any.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// TrainingID returns the tracked training id.
func (c *Controller) TrainingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trainingID
}

// Lines returns a copy of the buffer.
func (c *Controller) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// State returns a copy of the controller's observable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		TrainingID: c.trainingID,
		Training:   c.training,
		Lines:      append([]string{}, c.lines...),
		Points:     c.series.Points(),
		Loading:    c.connecting || c.refreshing > 0,
		Error:      c.errMsg,
		Outcome:    c.outcome,
		Transport:  c.transport,
	}
	if st.Points == nil {
		st.Points = []chart.Point{}
	}
	if c.sess != nil {
		st.SessionID = c.sess.ID
	}
	return st
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals coalesce; readers should call State on receipt.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()
	return ch, func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Close tears down any live session. The controller cannot be reused.
func (c *Controller) Close() {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()
	c.apply("", false, false)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) resetLocked() {
	c.lines = nil
	c.seen = make(map[string]struct{})
	c.series.Reset()
}

func (c *Controller) setTransport(s *Session, name string) {
	c.mu.Lock()
	if c.sess == s && s.ctx.Err() == nil {
		c.transport = name
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setError(s *Session, msg string) {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	c.errMsg = msg
	c.mu.Unlock()
	c.notify()
	if c.opts.OnError != nil {
		go c.opts.OnError(msg)
	}
}
