package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/logyard/internal/classify"
)

// ErrSessionClosed is returned by Wait when the session was torn down
// before reaching a terminal outcome.
var ErrSessionClosed = errors.New("stream: session closed before training ended")

// Session binds one training id to at most one live transport. Its terminal
// outcome is a one-shot signal: Done closes exactly once.
type Session struct {
	ID         string
	TrainingID string
	ConfigID   int
	StartedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{} // closed when the transport goroutine returns

	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	outcome classify.Outcome
}

func newSession(trainingID string, configID int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         uuid.NewString(),
		TrainingID: trainingID,
		ConfigID:   configID,
		StartedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		exited:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Done is closed when the session reaches completed or failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Closed is closed once the session's transport has shut down, for any reason.
func (s *Session) Closed() <-chan struct{} { return s.exited }

// Outcome returns the current outcome; Running until Done is closed.
func (s *Session) Outcome() classify.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Wait blocks until a terminal outcome, teardown, or ctx cancellation.
func (s *Session) Wait(ctx context.Context) (classify.Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-s.exited:
		select {
		case <-s.done:
			return s.Outcome(), nil
		default:
			return classify.Running, ErrSessionClosed
		}
	case <-ctx.Done():
		return classify.Running, ctx.Err()
	}
}

// finish records a terminal outcome and closes the transport. It reports
// whether this call was the one that fired.
func (s *Session) finish(o classify.Outcome) bool {
	fired := false
	s.once.Do(func() {
		s.mu.Lock()
		s.outcome = o
		s.mu.Unlock()
		close(s.done)
		fired = true
	})
	s.cancel()
	return fired
}

// stop cancels the transport and waits for its goroutine to exit.
func (s *Session) stop() {
	s.cancel()
	<-s.exited
}
