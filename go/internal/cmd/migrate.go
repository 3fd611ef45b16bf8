package main

import (
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			database, err := setupDatabase(cmd.Context(), s.DB)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
