package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/webhook-receiver/internal/storage/postgres"
)

var (
	migrateDatabaseURL string
	migrateDownSteps   int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the event store schema",
	Long: `Apply or roll back the embedded PostgreSQL migrations.

The database is taken from --database-url, or DATABASE_URL when the flag is omitted.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrationURL()
		if err != nil {
			return err
		}
		if err := postgres.MigrateUp(url); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateDownSteps < 1 {
			return errors.New("--steps must be at least 1")
		}
		url, err := migrationURL()
		if err != nil {
			return err
		}
		if err := postgres.MigrateDown(url, migrateDownSteps); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", migrateDownSteps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrationURL()
		if err != nil {
			return err
		}
		version, dirty, err := postgres.MigrationVersion(url)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDatabaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func migrationURL() (string, error) {
	if migrateDatabaseURL != "" {
		return migrateDatabaseURL, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return "", errors.New("DATABASE_URL or --database-url is required")
	}
	return cfg.Database.URL, nil
}
