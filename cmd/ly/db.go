package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/logyard/internal/db"
)

func newDBCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd(g))
	return cmd
}

func newDBMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the state and source databases",
		Long:  "Runs AutoMigrate for every logyard table against the state and source databases named in the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, g)
		},
	}
}

func runDBMigrate(cmd *cobra.Command, g *globalFlags) error {
	a, err := loadApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()
	out := cmd.OutOrStdout()

	targets := []struct{ name, driver, dsn string }{
		{"state", a.cfg.State.Driver, a.cfg.State.DSN},
		{"source", a.cfg.Source.Driver, a.cfg.Source.DSN},
	}
	for _, t := range targets {
		gdb, err := db.Open(t.driver, t.dsn)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", t.name, err)
		}
		db.Close(gdb)
		fmt.Fprintf(out, "Migrated %d tables in %s database (%s)\n", len(db.AllModels()), t.name, t.driver)
	}
	return nil
}
