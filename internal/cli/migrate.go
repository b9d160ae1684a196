package cli

import (
	"fmt"

	"github.com/austrian-business-infrastructure/fo/internal/config"
	"github.com/austrian-business-infrastructure/fo/migrations"
	"github.com/austrian-business-infrastructure/fo/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadWorkerConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := database.NewPool(ctx, database.DefaultPostgresConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		migrator := migrations.NewMigrator(db.Pool)
		if err := migrator.Up(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		LogVerbose("migrations applied")
		return nil
	},
}
