package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nsplit-app/nsplit/config"
)

var cfg *config.Config

func Execute() error {
	root := &cobra.Command{
		Use:          "nsplit",
		Short:        "Shared expense ledger and settlement service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if err := cfg.Validate(); err != nil {
				slog.Error("invalid configuration", "error", err)
				return err
			}
			return nil
		},
	}

	root.AddCommand(serveCmd(), migrateCmd())
	return root.Execute()
}
