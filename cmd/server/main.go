package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/connect-four-backend/internal/ai"
	"github.com/DoyleJ11/connect-four-backend/internal/config"
	"github.com/DoyleJ11/connect-four-backend/internal/httpapi"
	"github.com/DoyleJ11/connect-four-backend/internal/hub"
	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/metrics"
	"github.com/DoyleJ11/connect-four-backend/internal/store"
	"github.com/DoyleJ11/connect-four-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rec, err := openRecorder(cfg, log)
	if err != nil {
		return err
	}
	if c, ok := rec.(io.Closer); ok {
		defer func() { err = multierr.Append(err, c.Close()) }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Config{
		Rooms:        cfg.NumRooms,
		TurnDuration: cfg.TurnDuration,
		Grace:        cfg.GracePeriod,
		Clock:        clock.New(),
		Logger:       log,
		Recorder:     rec,
		Metrics:      m,
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:      h,
			Recorder: rec,
			Chooser:  ai.NewChooser(nil),
			Gatherer: reg,
			Logger:   log,
			WS: ws.Options{
				OriginPatterns: cfg.AllowedOrigins,
				Rate:           cfg.MsgRate,
				Burst:          cfg.MsgBurst,
				Metrics:        m,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.Int("rooms", cfg.NumRooms),
			zap.Duration("turn", cfg.TurnDuration),
			zap.Duration("grace", cfg.GracePeriod),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs error
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		case <-sctx.Done():
		}
		select {
		case <-h.Done():
		case <-sctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("hub: %w", sctx.Err()))
		}
		return errs
	})

	return g.Wait()
}

func openRecorder(cfg config.Config, log *zap.Logger) (store.Recorder, error) {
	if cfg.DatabaseURL == "" {
		log.Info("match history kept in memory")
		return store.NewMemoryRecorder(0), nil
	}
	rec, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open match store: %w", err)
	}
	log.Info("match history stored in postgres")
	return rec, nil
}
