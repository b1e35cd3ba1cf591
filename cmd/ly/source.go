package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/db"
	"github.com/zulandar/logyard/internal/source"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newSourceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Run or feed the bundled training-log server",
	}

	cmd.AddCommand(newSourceServeCmd(g))
	cmd.AddCommand(newSourcePushCmd(g))
	cmd.AddCommand(newSourceListCmd(g))
	return cmd
}

// openSource opens the source database named in the config.
func openSource(a *app) (*gorm.DB, error) {
	gdb, err := db.Open(a.cfg.Source.Driver, a.cfg.Source.DSN)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", a.cfg.Source.DSN, err)
	}
	return gdb, nil
}

type serveOpts struct {
	port       int
	tail       string
	trainingID string
	configID   int
	fromStart  bool
}

func newSourceServeCmd(g *globalFlags) *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve training logs over snapshot, SSE and websocket endpoints",
		Long: "Starts the training-log server the stream controller follows. With --tail, lines " +
			"appended to a file are ingested for --training-id as they are written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceServe(cmd, g, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port to listen on (default: source.port)")
	cmd.Flags().StringVar(&opts.tail, "tail", "", "log file to follow")
	cmd.Flags().StringVar(&opts.trainingID, "training-id", "", "training id for lines read from --tail")
	cmd.Flags().IntVar(&opts.configID, "config-id", 1, "configuration id recorded with tailed lines")
	cmd.Flags().BoolVar(&opts.fromStart, "from-start", false, "ingest the existing contents of --tail")
	return cmd
}

func runSourceServe(cmd *cobra.Command, g *globalFlags, opts serveOpts) error {
	if opts.tail != "" && opts.trainingID == "" {
		return fmt.Errorf("--training-id is required with --tail")
	}
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	gdb, err := openSource(a)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	store := source.NewStore(gdb)

	ctx, stop := signalContext(cmd)
	defer stop()

	port := opts.port
	if port == 0 {
		port = a.cfg.Source.Port
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return source.Start(gctx, source.StartOpts{
			Options: source.Options{
				Store:        store,
				BasePath:     a.cfg.TrainingLogsPath,
				PushInterval: time.Duration(a.cfg.Source.PushIntervalMs) * time.Millisecond,
				Heartbeat:    time.Duration(a.cfg.Source.HeartbeatSec) * time.Second,
				Logger:       a.log.Named("source"),
			},
			Port: port,
			Out:  cmd.OutOrStdout(),
		})
	})
	if opts.tail != "" {
		tl := &source.Tailer{
			Store:      store,
			Path:       opts.tail,
			TrainingID: opts.trainingID,
			ConfigID:   opts.configID,
			FromStart:  opts.fromStart,
			Logger:     a.log.Named("tail"),
		}
		grp.Go(func() error {
			if err := tl.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return grp.Wait()
}

func newSourcePushCmd(g *globalFlags) *cobra.Command {
	var configID int

	cmd := &cobra.Command{
		Use:   "push <training-id> [line...]",
		Short: "Append log lines to a training run",
		Long:  "Appends the given lines, or each line read from stdin when none are given, to the source database.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcePush(cmd, g, args[0], args[1:], configID)
		},
	}

	cmd.Flags().IntVar(&configID, "config-id", 1, "configuration id recorded with the lines")
	return cmd
}

func runSourcePush(cmd *cobra.Command, g *globalFlags, trainingID string, lines []string, configID int) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	if len(lines) == 0 {
		lines, err = readLines(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if len(lines) == 0 {
		return fmt.Errorf("no lines to push")
	}

	gdb, err := openSource(a)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	rows, err := source.NewStore(gdb).Append(cmd.Context(), trainingID, configID, lines...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d lines to %s\n", len(rows), trainingID)
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lines, nil
}

func newSourceListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List training runs in the source database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			gdb, err := openSource(a)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			ids, err := source.NewStore(gdb).Trainings(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No training runs.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}
