package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-session-scheduler/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the scheduler schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(_ *cobra.Command, rt *runtime, _ []string) error {
		return database.MigrateUp(rt.container.DB.DB, rt.logger)
	}),
}

var migrateDownSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(_ *cobra.Command, rt *runtime, _ []string) error {
		return database.MigrateDown(rt.container.DB.DB, migrateDownSteps, rt.logger)
	}),
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
