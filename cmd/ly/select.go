package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSelectCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show or change the stored configuration and environment ids",
		Long:  "The stored configuration id is used by tail, watch, logs and dashboard when --config-id is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelectShow(cmd, g)
		},
	}

	cmd.AddCommand(newSelectSetCmd(g, "config", "Select the configuration id"))
	cmd.AddCommand(newSelectSetCmd(g, "env", "Select the environment id"))
	cmd.AddCommand(newSelectClearCmd(g))
	return cmd
}

func runSelectShow(cmd *cobra.Command, g *globalFlags) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	sel, err := a.selections()
	if err != nil {
		return err
	}
	cur, err := sel.Get(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config id: %s\n", formatSelection(cur.ConfigID))
	fmt.Fprintf(out, "env id:    %s\n", formatSelection(cur.EnvID))
	return nil
}

func newSelectSetCmd(g *globalFlags, which, short string) *cobra.Command {
	return &cobra.Command{
		Use:   which + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("%s id must be a positive integer, got %q", which, args[0])
			}
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			sel, err := a.selections()
			if err != nil {
				return err
			}
			if which == "config" {
				err = sel.SetConfigID(cmd.Context(), id)
			} else {
				err = sel.SetEnvID(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s id %d\n", which, id)
			return nil
		},
	}
}

func newSelectClearCmd(g *globalFlags) *cobra.Command {
	var config, env bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget stored ids (both unless --config-id or --env-id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			sel, err := a.selections()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch {
			case config && !env:
				err = sel.ClearConfigID(ctx)
			case env && !config:
				err = sel.ClearEnvID(ctx)
			default:
				err = sel.Clear(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Selection cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&config, "config-id", false, "clear only the configuration id")
	cmd.Flags().BoolVar(&env, "env-id", false, "clear only the environment id")
	return cmd
}
