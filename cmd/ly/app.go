package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/classify"
	"github.com/zulandar/logyard/internal/config"
	"github.com/zulandar/logyard/internal/db"
	"github.com/zulandar/logyard/internal/logging"
	"github.com/zulandar/logyard/internal/notify"
	"github.com/zulandar/logyard/internal/selection"
	"github.com/zulandar/logyard/internal/share"
	"github.com/zulandar/logyard/internal/shell"
	"github.com/zulandar/logyard/internal/stream"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func (g *globalFlags) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&g.configPath, "config", "c", config.DefaultPath, "path to logyard config file")
	f.StringVar(&g.envFile, "env-file", ".env", "dotenv file holding webhook URLs and tokens")
	f.StringVar(&g.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// app holds what a command needs after config is loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger

	state *gorm.DB
}

// loadApp reads config and secrets and builds the diagnostic logger. A
// missing default config file falls back to defaults; a missing explicit
// one is an error.
func loadApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadOrDefault(g.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.LoadSecrets(g.envFile); err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	if a.state != nil {
		db.Close(a.state)
	}
	a.log.Sync()
}

// stateDB opens (and migrates) the local state database on first use.
func (a *app) stateDB() (*gorm.DB, error) {
	if a.state != nil {
		return a.state, nil
	}
	gdb, err := db.Open(a.cfg.State.Driver, a.cfg.State.DSN)
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", a.cfg.State.DSN, err)
	}
	a.state = gdb
	return gdb, nil
}

func (a *app) selections() (*selection.Store, error) {
	gdb, err := a.stateDB()
	if err != nil {
		return nil, err
	}
	return selection.NewStore(gdb), nil
}

// resolveConfigID picks the configuration id: the flag, then the config
// file, then the persisted selection, then the default.
func (a *app) resolveConfigID(ctx context.Context, flag int) (int, error) {
	if flag > 0 {
		return flag, nil
	}
	if a.cfg.Stream.ConfigID > 0 {
		return a.cfg.Stream.ConfigID, nil
	}
	sel, err := a.selections()
	if err != nil {
		return 0, err
	}
	id, err := sel.ConfigID(ctx)
	if errors.Is(err, selection.ErrNotSet) {
		return stream.DefaultConfigID, nil
	}
	return id, err
}

type controllerOpts struct {
	configID   int
	transports []string
	hooks      bool // announce outcomes through the notifier
}

func (a *app) newController(o controllerOpts) (*stream.Controller, error) {
	snap := &stream.SnapshotClient{}
	names := o.transports
	if len(names) == 0 {
		names = a.cfg.Stream.Transports
	}
	tiers, err := stream.BuildTransports(names, stream.BuildOpts{
		Snapshot:     snap,
		PollSchedule: a.cfg.Stream.PollSchedule,
		Logger:       a.log.Named("stream"),
	})
	if err != nil {
		return nil, err
	}

	opts := stream.Options{
		BaseURL:    a.cfg.TrainingLogsURL(),
		ConfigID:   o.configID,
		Transports: tiers,
		Snapshot:   snap,
		Classifier: classify.New(a.cfg.Classifier.ExtraErrorTerms, a.cfg.Classifier.ExtraCompleteTerms),
		Logger:     a.log.Named("stream"),
	}

	var c *stream.Controller
	if o.hooks {
		d, err := a.dispatcher()
		if err != nil {
			return nil, err
		}
		if d.Enabled() {
			hook := func(s *stream.Session) { d.Hook(c)(s) }
			if a.cfg.NotifyOn(classify.Completed.String()) {
				opts.OnTrainingComplete = hook
			}
			if a.cfg.NotifyOn(classify.Failed.String()) {
				opts.OnTrainingError = hook
			}
		}
	}
	c, err = stream.NewController(opts)
	return c, err
}

// dispatcher builds the chat notifier from the configured webhooks.
func (a *app) dispatcher() (*notify.Dispatcher, error) {
	var targets notify.Multi
	if u := a.cfg.Secrets.SlackWebhookURL; u != "" {
		targets = append(targets, notify.NewSlack(u))
	}
	if u := a.cfg.Secrets.DiscordWebhookURL; u != "" {
		d, err := notify.NewDiscord(u)
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}
	return notify.NewDispatcher(targets, a.log.Named("notify")), nil
}

// publisher returns the gist publisher, or nil when no token is configured.
func (a *app) publisher() share.Publisher {
	p, err := share.NewGistPublisher(share.GistOpts{
		Token:  a.cfg.Secrets.GitHubToken,
		Public: a.cfg.Share.Public,
	})
	if err != nil {
		return nil
	}
	return p
}

func (a *app) newShell(c *stream.Controller, clip shell.Clipboard) *shell.Shell {
	return shell.New(c, shell.Options{Clipboard: clip, Publisher: a.publisher()})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
