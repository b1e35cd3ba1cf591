package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/notify"
	"github.com/zulandar/logyard/internal/stream"
	"go.uber.org/zap"
)

var errTrainingFailed = errors.New("training failed")

type tailOpts struct {
	configID   int
	transports []string
	notify     bool
}

func newTailCmd(g *globalFlags) *cobra.Command {
	var opts tailOpts

	cmd := &cobra.Command{
		Use:   "tail <training-id>",
		Short: "Follow a training run's log until it ends",
		Long: "Streams a live training log to stdout, falling back from SSE to websocket to polling. " +
			"Exits 0 when training completes and 2 when it fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, g, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.configID, "config-id", 0, "configuration id (default: stored selection, then 1)")
	cmd.Flags().StringSliceVar(&opts.transports, "transport", nil, "transport tiers in order (sse, socket, poll)")
	cmd.Flags().BoolVar(&opts.notify, "notify", true, "post the outcome to configured chat webhooks")
	return cmd
}

func runTail(cmd *cobra.Command, g *globalFlags, trainingID string, opts tailOpts) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd)
	defer stop()

	configID, err := a.resolveConfigID(ctx, opts.configID)
	if err != nil {
		return err
	}
	c, err := a.newController(controllerOpts{configID: configID, transports: opts.transports})
	if err != nil {
		return err
	}
	defer c.Close()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if isTerminal(out) {
		fmt.Fprintf(errOut, "Following %s (config %d)... (Ctrl+C to stop)\n", trainingID, configID)
	}

	changes, unsubscribe := c.Subscribe()
	defer unsubscribe()
	s := c.Update(trainingID, true)
	if s == nil {
		return fmt.Errorf("no session started for %s", trainingID)
	}

	f := &follower{c: c, out: out, errOut: errOut}
	for {
		select {
		case <-ctx.Done():
			f.flush()
			return nil
		case <-changes:
			f.flush()
		case <-s.Closed():
			f.flush()
			outcome, werr := s.Wait(ctx)
			if opts.notify && outcome.Terminal() {
				a.announce(ctx, s, c.State())
			}
			return tailResult(errOut, trainingID, outcome, werr, c.State().Error)
		}
	}
}

// follower prints buffer lines not yet written and any new error message.
type follower struct {
	c       *stream.Controller
	out     io.Writer
	errOut  io.Writer
	printed int
	lastErr string
}

func (f *follower) flush() {
	st := f.c.State()
	if f.printed > len(st.Lines) {
		f.printed = len(st.Lines)
	}
	for _, line := range st.Lines[f.printed:] {
		fmt.Fprintln(f.out, line)
	}
	f.printed = len(st.Lines)
	if st.Error != "" && st.Error != f.lastErr {
		fmt.Fprintln(f.errOut, "!", st.Error)
	}
	f.lastErr = st.Error
}

// announce sends the outcome synchronously so it is delivered before exit.
func (a *app) announce(ctx context.Context, s *stream.Session, st stream.State) {
	if !a.cfg.NotifyOn(s.Outcome().String()) {
		return
	}
	d, err := a.dispatcher()
	if err != nil {
		a.log.Warn("notifier unavailable", zap.Error(err))
		return
	}
	d.Send(context.WithoutCancel(ctx), notify.NewEvent(s, st))
}

func tailResult(w io.Writer, trainingID string, outcome classify.Outcome, err error, lastErr string) error {
	switch {
	case outcome == classify.Completed:
		fmt.Fprintf(w, "Training %s completed\n", trainingID)
		return nil
	case outcome == classify.Failed:
		return fmt.Errorf("%w: %s", errTrainingFailed, trainingID)
	case errors.Is(err, stream.ErrSessionClosed):
		msg := "all transports closed before training ended"
		if lastErr != "" {
			msg += " (" + strings.TrimSpace(lastErr) + ")"
		}
		return errors.New(msg)
	default:
		return err
	}
}
