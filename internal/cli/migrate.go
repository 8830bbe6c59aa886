package cli

import (
	"fmt"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
		Long:  "Apply all pending migrations, or roll back the given number of steps with --down.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if down < 0 {
				return fmt.Errorf("--down must not be negative")
			}

			database, err := postgres.Open(cmd.Context(), config.LoadDatabaseConfig())
			if err != nil {
				return err
			}
			defer database.Close()

			if down > 0 {
				if err := database.RollbackMigrations(down); err != nil {
					return err
				}
				logger.Log.WithField("steps", down).Info("Migrations rolled back")
				return nil
			}

			if err := database.RunMigrations(); err != nil {
				return err
			}
			logger.Log.Info("Migrations applied")
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}
