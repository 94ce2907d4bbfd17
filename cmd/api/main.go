package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-rehoming/internal/bootstrap"
	"pet-rehoming/internal/domain/placement"
	"pet-rehoming/internal/platform/config"
	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/platform/metrics"
	"pet-rehoming/internal/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// @title Pet Rehoming API
// @version 1.0
// @description Placement requests, helper responses, transfers, foster assignments and return handovers.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("invalid config", map[string]any{"err": err})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", map[string]any{"err": err})
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.Database(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	sink, closeSink, err := bootstrap.Sink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	registry, err := bootstrap.Registry(cfg)
	if err != nil {
		return err
	}
	verifier, err := bootstrap.Verifier(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			AuthVerifier:     verifier,
			DB:               db,
			Logger:           log,
			Registry:         registry,
			Sink:             sink,
			Metrics:          metrics.New(reg),
			MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			PlacementOptions: []placement.Option{placement.WithNotifyTimeout(cfg.NotifyTimeout)},
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", map[string]any{
			"addr":        cfg.Addr(),
			"auth_mode":   string(cfg.AuthMode),
			"notify_sink": string(cfg.NotifySink),
			"postgres":    db != nil,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", nil)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
