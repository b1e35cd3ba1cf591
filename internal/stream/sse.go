package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	sse "github.com/tmaxmax/go-sse"
	"github.com/zulandar/logyard/internal/logging"
	"go.uber.org/zap"
)

// maxEventSize bounds a single event; history payloads can be large.
const maxEventSize = 8 << 20

// SSETransport reads a text/event-stream response.
type SSETransport struct {
	HTTP   *http.Client // must not set a Timeout; defaults to a fresh client
	Logger *zap.Logger
}

func (s *SSETransport) Name() string { return NameSSE }

// Run connects to the push stream and delivers one chunk per dispatched
// message, history or log event. Other named events are dropped.
func (s *SSETransport) Run(ctx context.Context, t Target, sink Sink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := s.HTTP
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{Status: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content type %q", ct)
	}
	sink.Opened()

	log := logging.OrNop(s.Logger)
	for ev, err := range sse.Read(resp.Body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ev.Data == "" {
			continue
		}
		switch ev.Type {
		case "", EventMessage, EventLog, EventHistory:
			sink.Deliver(Chunk{Event: ev.Type, Data: ev.Data})
		default:
			log.Debug("ignoring event", zap.String("event", ev.Type), zap.String("training_id", t.TrainingID))
		}
	}
	return ctx.Err()
}
