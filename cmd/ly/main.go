package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// exitTrainingFailed is the exit status when a followed run fails.
const exitTrainingFailed = 2

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "ly",
		Short:         "Logyard — follow live training logs",
		Long:          "Logyard follows a model training run's log over SSE, websocket or polling, detects completion and failure, and charts the loss.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTailCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newLogsCmd(g))
	cmd.AddCommand(newDashboardCmd(g))
	cmd.AddCommand(newSourceCmd(g))
	cmd.AddCommand(newSelectCmd(g))
	cmd.AddCommand(newDBCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ly %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	if errors.Is(err, errTrainingFailed) {
		return exitTrainingFailed
	}
	return 1
}

func main() {
	os.Exit(execute(newRootCmd()))
}
