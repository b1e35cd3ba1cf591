package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPollSchedule fetches a snapshot every two seconds.
const DefaultPollSchedule = "@every 2s"

// PollTransport repeatedly fetches the full snapshot on a schedule. It is
// the last tier and never ends on its own: fetch failures are reported and
// retried on the next tick.
type PollTransport struct {
	Client   *SnapshotClient
	Schedule cron.Schedule
	Now      func() time.Time // defaults to time.Now
}

// NewPollTransport parses spec ("@every 2s", or a 5-field cron expression).
func NewPollTransport(client *SnapshotClient, spec string) (*PollTransport, error) {
	if spec == "" {
		spec = DefaultPollSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("stream: poll schedule %q: %w", spec, err)
	}
	if client == nil {
		client = &SnapshotClient{}
	}
	return &PollTransport{Client: client, Schedule: sched}, nil
}

func (p *PollTransport) Name() string { return NamePoll }

// Run fetches immediately, then on every tick until ctx is cancelled.
func (p *PollTransport) Run(ctx context.Context, t Target, sink Sink) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	opened := false
	for {
		lines, err := p.Client.Fetch(ctx, t)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			sink.Report(err)
		} else {
			if !opened {
				opened = true
				sink.Opened()
			}
			if lines == nil {
				lines = []string{}
			}
			sink.Deliver(Chunk{Lines: lines})
		}

		wait := p.Schedule.Next(now()).Sub(now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
