package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finsync/internal/infrastructure/postgres"
	"finsync/internal/shared/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			known, err := postgres.Migrations()
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info().
				Int("applied", applied).
				Int("known", len(known)).
				Msg("migrations complete")
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", applied)
			return nil
		},
	}
}
