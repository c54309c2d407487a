package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"todo-backend/infrastructure/persistence/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StorageBackend != "postgres" {
				return fmt.Errorf("migrate needs STORAGE_BACKEND=postgres, got %q", cfg.StorageBackend)
			}

			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.ApplyMigrations(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
