package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progression-engine/config"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/postgres"
)

var databaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
			applied, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
			if err := m.Rollback(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back 1 migration")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
			migrations, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
			for _, mig := range migrations {
				applied := "pending"
				if mig.IsApplied {
					applied = mig.AppliedAt.UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%03d\t%s\t%s\n", mig.Version, mig.Name, applied)
			}
			return w.Flush()
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (default: DATABASE_URL)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(ctx context.Context, fn func(*postgres.Migrator) error) error {
	storeCfg, err := config.LoadStore()
	if err != nil {
		return err
	}
	if databaseURL != "" {
		storeCfg.DatabaseURL = databaseURL
	}
	if storeCfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL or --database-url is required")
	}

	conn, err := connectPostgres(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(postgres.NewMigrator(conn))
}
