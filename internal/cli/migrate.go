package cli

import (
	"github.com/couchcryptid/hazard-sync/internal/adapter/postgres"
	"github.com/spf13/cobra"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply every pending schema migration, or roll all of them back with --down.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if migrateDown {
			if err := postgres.MigrateDown(cfg.DatabaseURL); err != nil {
				return err
			}
			success(out, "All migrations rolled back")
			return nil
		}

		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		version, dirty, err := postgres.SchemaVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if dirty {
			warn(out, "Schema version %d is dirty", version)
			return nil
		}
		success(out, "Schema at version %d", version)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back all migrations")
}
