package commands

import (
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nsplit-app/nsplit/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Ping(); err != nil {
				return err
			}

			if err := storage.RunMigrations(db); err != nil {
				return err
			}

			slog.Info("migrations applied")
			return nil
		},
	}
}
