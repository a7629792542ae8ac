package main

import (
	"context"
	"os"

	"github.com/dkeye/seshd/internal/config"
	"github.com/dkeye/seshd/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "seshd",
	Short: "Real-time climbing session queue sync server",
	Long:  `HTTP + WebSocket API for shared climbing queues. Commands: serve (default), migrate, cleanup.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		setupLogger(true)
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogger(cfg.Mode == "debug")
		return nil
	},
	RunE:         runServe,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// setupLogger writes human-friendly output for terminals and JSON otherwise.
func setupLogger(console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openStore opens the configured store. pg is nil for the memory store.
func openStore(ctx context.Context, migrate bool) (st store.Store, pg *store.Postgres, err error) {
	if cfg.Store.Driver != "postgres" {
		log.Warn().Str("module", "main").Msg("using in-memory store, sessions will not survive restarts")
		return store.NewMemory(), nil, nil
	}
	pg, err = store.OpenPostgres(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := pg.Migrate(ctx, cfg.Store.MigrationsPath); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	return pg, pg, nil
}
