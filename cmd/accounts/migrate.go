package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		applied, err := migrateUp(cmd.Context(), app.client)
		if err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		reportMigrations(cmd, "applied", applied)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		rolled, err := migrateDown(cmd.Context(), app.client)
		if err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		reportMigrations(cmd, "rolled back", rolled)
		return nil
	},
}

func reportMigrations(cmd *cobra.Command, action string, names []string) {
	if len(names) == 0 {
		cmd.Println("nothing to do")
		return
	}
	for _, name := range names {
		cmd.Printf("%s %s\n", action, name)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
