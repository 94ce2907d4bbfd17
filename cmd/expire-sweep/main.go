// Command expire-sweep expira una vez los avisos de placement vencidos y sale.
// Lo dispara el scheduler externo (cron, CronJob de k8s).
package main

import (
	"context"
	"flag"
	"os"
	"time"

	pg "pet-rehoming/internal/adapters/storage/postgres"
	"pet-rehoming/internal/bootstrap"
	"pet-rehoming/internal/domain/capabilities"
	"pet-rehoming/internal/domain/placement"
	"pet-rehoming/internal/platform/config"
	"pet-rehoming/internal/platform/logger"
)

func main() {
	at := flag.String("now", "", "RFC3339; por defecto la hora actual")
	timeout := flag.Duration("timeout", 5*time.Minute, "tiempo máximo del barrido")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("invalid config", map[string]any{"err": err})
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName + "-expire-sweep",
	})

	var now time.Time
	if *at != "" {
		now, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			log.Error("invalid -now", map[string]any{"err": err})
			os.Exit(2)
		}
	}

	if err := run(cfg, log, now, *timeout); err != nil {
		log.Error("expiry sweep failed", map[string]any{"err": err})
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger, now time.Time, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if cfg.DBDSN == "" {
		// Sin Postgres no hay nada persistido que expirar.
		log.Warn("DB_DSN not set, nothing to sweep", nil)
		return nil
	}
	db, err := bootstrap.Database(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	sink, closeSink, err := bootstrap.Sink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	registry, err := bootstrap.Registry(cfg)
	if err != nil {
		return err
	}

	svc := placement.NewService(
		pg.NewPlacementStore(db),
		capabilities.NewChecker(registry),
		sink,
		placement.WithLogger(log),
		placement.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	res, err := svc.ExpireDue(ctx, now)
	log.Info("expired placement requests", map[string]any{
		"expired": len(res.Expired),
		"skipped": res.Skipped,
	})
	return err
}
