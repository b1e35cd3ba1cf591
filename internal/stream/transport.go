package stream

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sink receives everything a transport observes. Calls happen on the
// transport's goroutine in arrival order.
type Sink interface {
	// Opened is called once the connection is established.
	Opened()
	// Deliver hands over one received chunk.
	Deliver(Chunk)
	// Report surfaces a non-fatal error; the transport keeps running.
	Report(err error)
}

// Transport carries live log data for one session. Run blocks until the
// remote end closes (nil), the connection fails (error), or ctx is cancelled.
type Transport interface {
	Name() string
	Run(ctx context.Context, t Target, sink Sink) error
}

// Transport names accepted in configuration.
const (
	NameSSE    = "sse"
	NameSocket = "socket"
	NamePoll   = "poll"
)

// BuildOpts holds the dependencies needed to build transports by name.
type BuildOpts struct {
	Snapshot     *SnapshotClient
	PollSchedule string // cron spec, e.g. "@every 2s"
	Logger       *zap.Logger
}

// BuildTransports returns the tiers for names, in order.
func BuildTransports(names []string, opts BuildOpts) ([]Transport, error) {
	if len(names) == 0 {
		names = []string{NameSSE, NameSocket, NamePoll}
	}
	out := make([]Transport, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(n) {
		case NameSSE:
			out = append(out, &SSETransport{Logger: opts.Logger})
		case NameSocket:
			out = append(out, &SocketTransport{})
		case NamePoll:
			pt, err := NewPollTransport(opts.Snapshot, opts.PollSchedule)
			if err != nil {
				return nil, err
			}
			out = append(out, pt)
		default:
			return nil, fmt.Errorf("stream: unknown transport %q", n)
		}
	}
	return out, nil
}
