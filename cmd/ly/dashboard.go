package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/dashboard"
	"github.com/zulandar/logyard/internal/shell"
)

type dashboardOpts struct {
	port       int
	trainingID string
	live       bool
	configID   int
}

func newDashboardCmd(g *globalFlags) *cobra.Command {
	var opts dashboardOpts

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the web dashboard",
		Long:  "Launches a local web dashboard showing a followed training log and its loss chart in real time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, g, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port to listen on (default: dashboard.port)")
	cmd.Flags().StringVar(&opts.trainingID, "training-id", "", "training run to follow on start")
	cmd.Flags().BoolVar(&opts.live, "live", true, "follow --training-id live")
	cmd.Flags().IntVar(&opts.configID, "config-id", 0, "configuration id (default: stored selection, then 1)")
	return cmd
}

func runDashboard(cmd *cobra.Command, g *globalFlags, opts dashboardOpts) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd)
	defer stop()

	sel, err := a.selections()
	if err != nil {
		return err
	}
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
	if opts.trainingID != "" {
		c.Update(opts.trainingID, opts.live)
	}

	port := opts.port
	if port == 0 {
		port = a.cfg.Dashboard.Port
	}
	if err := dashboard.Start(ctx, dashboard.StartOpts{
		Shell:      sh,
		Selections: sel,
		Port:       port,
		Logger:     a.log.Named("dashboard"),
		Out:        cmd.OutOrStdout(),
	}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Dashboard stopped")
	return nil
}
