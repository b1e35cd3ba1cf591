package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/shell"
)

type logsOpts struct {
	configID int
	download string
	copy     bool
	share    bool
	quiet    bool
	stats    bool
}

func newLogsCmd(g *globalFlags) *cobra.Command {
	var opts logsOpts

	cmd := &cobra.Command{
		Use:   "logs <training-id>",
		Short: "Fetch a training run's full log once",
		Long:  "Fetches the current log snapshot for a training run. It can be saved to a file, copied to the clipboard or shared as a gist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, g, args[0], opts, shell.SystemClipboard{})
		},
	}

	cmd.Flags().IntVar(&opts.configID, "config-id", 0, "configuration id (default: stored selection, then 1)")
	cmd.Flags().StringVarP(&opts.download, "download", "d", "", "write the log into this directory")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "copy the log to the clipboard")
	cmd.Flags().BoolVar(&opts.share, "share", false, "publish the log as a GitHub gist")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the log lines")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print loss statistics")
	return cmd
}

func runLogs(cmd *cobra.Command, g *globalFlags, trainingID string, opts logsOpts, clip shell.Clipboard) error {
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
	c, err := a.newController(controllerOpts{configID: configID})
	if err != nil {
		return err
	}
	defer c.Close()
	sh := a.newShell(c, clip)

	c.Update(trainingID, false)
	if err := sh.Refresh(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	st := c.State()
	if !opts.quiet {
		for _, line := range st.Lines {
			fmt.Fprintln(out, line)
		}
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, shell.Status(st))
	if opts.stats {
		fmt.Fprintln(errOut, formatStats(chart.StatsOf(st.Points)))
	}

	if opts.download != "" {
		path, err := sh.Download(opts.download)
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "Saved %s\n", path)
	}
	if opts.copy {
		if err := sh.Copy(); err != nil {
			return err
		}
		fmt.Fprintln(errOut, "Logs copied to clipboard")
	}
	if opts.share {
		url, err := sh.Share(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, url)
	}
	return nil
}
