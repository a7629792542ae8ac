package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/seshd/internal/adapters/http"
	wssignal "github.com/dkeye/seshd/internal/adapters/signal"
	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/catalog"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/identity"
	"github.com/dkeye/seshd/internal/notify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, pg, err := openStore(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("close store")
		}
	}()

	var sink notify.Sink = notify.LogSink{}
	if pg != nil {
		sink = notify.NewPgSink(pg.DB())
	}
	notifier := notify.New(sink, notify.Options{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
		Window:    cfg.Notify.Window,
	})

	o := orch.New(st)
	o.Log = core.NewEventLog(cfg.EventLog.Capacity, cfg.EventLog.MaxAge)
	o.Retry = app.NewRetrier(cfg.Storage.Retries)
	o.StorageTimeout = cfg.Storage.Timeout
	o.IdleThreshold = cfg.Cleanup.IdleThreshold
	o.Notifier = notifier
	if cfg.Catalog.Path != "" {
		climbs, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		o.Catalog = climbs
		log.Info().Str("module", "main").Int("climbs", climbs.Len()).Msg("catalog loaded")
	}

	ws := wssignal.NewSignalWSController(o,
		wssignal.NewRateLimiter(cfg.RateLimit.Mutations, cfg.RateLimit.Interval),
		wssignal.NewRateLimiter(cfg.RateLimit.Joins, cfg.RateLimit.JoinInterval),
		wssignal.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			SendBuffer: cfg.SendBuffer,
		})
	r := router.SetupRouter(ctx, cfg, o, identity.NewStaticTokens(cfg.Identity.Tokens), ws)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("seshd server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.NewCleanupScheduler(o, cfg.Cleanup.Interval).Run(gctx)
	})
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		o.Reset()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
