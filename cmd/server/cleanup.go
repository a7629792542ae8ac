package main

import (
	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete sessions idle past the threshold once and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, _, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		o := orch.New(st)
		o.Retry = app.NewRetrier(cfg.Storage.Retries)
		o.StorageTimeout = cfg.Storage.Timeout
		o.IdleThreshold = cfg.Cleanup.IdleThreshold
		n, err := o.CleanupExpiredSessions(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Str("module", "main").Int("removed", n).Msg("cleanup done")
		return nil
	},
}
