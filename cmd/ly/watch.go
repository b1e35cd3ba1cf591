package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/dashboard"
	"github.com/zulandar/logyard/internal/shell"
	"github.com/zulandar/logyard/internal/tui"
	"golang.org/x/sync/errgroup"
)

type watchOpts struct {
	configID    int
	live        bool
	dashboard   bool
	port        int
	downloadDir string
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:   "watch [training-id]",
		Short: "Interactive terminal view of a training log and loss chart",
		Long: "Opens a terminal UI that follows a training log. Keys: r refresh, d download, c copy, " +
			"s share, x clear, a toggle axis, tab switch view, q quit. With --dashboard the web " +
			"dashboard serves the same session.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runWatch(cmd, g, id, opts)
		},
	}

	cmd.Flags().IntVar(&opts.configID, "config-id", 0, "configuration id (default: stored selection, then 1)")
	cmd.Flags().BoolVar(&opts.live, "live", true, "follow the run live; false shows a snapshot")
	cmd.Flags().BoolVar(&opts.dashboard, "dashboard", false, "also serve the web dashboard")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "dashboard port (default: dashboard.port)")
	cmd.Flags().StringVar(&opts.downloadDir, "download-dir", ".", "directory downloads are written to")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globalFlags, trainingID string, opts watchOpts) error {
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
	c, err := a.newController(controllerOpts{configID: configID, hooks: true})
	if err != nil {
		return err
	}
	defer c.Close()
	sh := a.newShell(c, shell.SystemClipboard{})

	if trainingID != "" {
		c.Update(trainingID, opts.live)
		if !opts.live {
			go sh.Refresh(ctx)
		}
	}

	grp, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	grp.Go(func() error {
		defer cancel()
		return tui.Run(runCtx, sh, opts.downloadDir)
	})
	if opts.dashboard {
		sel, err := a.selections()
		if err != nil {
			return err
		}
		port := opts.port
		if port == 0 {
			port = a.cfg.Dashboard.Port
		}
		grp.Go(func() error {
			return dashboard.Start(runCtx, dashboard.StartOpts{
				Shell:      sh,
				Selections: sel,
				Port:       port,
				Logger:     a.log.Named("dashboard"),
			})
		})
	}
	return grp.Wait()
}
