package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Store.Driver != "postgres" {
			return errors.New("migrate needs store.driver=postgres")
		}
		st, _, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer st.Close()
		log.Info().Str("module", "main").Str("path", cfg.Store.MigrationsPath).Msg("migrations done")
		return nil
	},
}
