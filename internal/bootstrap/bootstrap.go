// Package bootstrap arma las dependencias de infraestructura a partir de la
// config. Lo comparten cmd/api y cmd/expire-sweep.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pet-rehoming/internal/adapters/auth/jwtauth"
	"pet-rehoming/internal/adapters/auth/odin"
	"pet-rehoming/internal/adapters/capabilities/pettypes"
	"pet-rehoming/internal/adapters/capabilities/static"
	"pet-rehoming/internal/adapters/notifications/kafka"
	"pet-rehoming/internal/adapters/notifications/logsink"
	"pet-rehoming/internal/adapters/notifications/redispub"
	pg "pet-rehoming/internal/adapters/storage/postgres"
	"pet-rehoming/internal/platform/config"
	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/platform/redis"
	"pet-rehoming/internal/ports/auth"
	capport "pet-rehoming/internal/ports/capabilities"
	"pet-rehoming/internal/ports/notifications"
)

const petTypesCacheTTL = 5 * time.Minute

// Database abre Postgres y aplica migraciones si corresponde.
// Devuelve nil, nil si DB_DSN está vacío (modo in-memory).
func Database(ctx context.Context, cfg config.Config, log logger.Logger) (*sql.DB, error) {
	if cfg.DBDSN == "" {
		log.Warn("DB_DSN not set, using in-memory storage", nil)
		return nil, nil
	}
	db, err := pg.Open(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := pg.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", nil)
	}
	return db, nil
}

// Sink elige el adapter de notificaciones. closeFn libera conexiones al apagar.
func Sink(ctx context.Context, cfg config.Config, log logger.Logger) (notifications.Sink, func(), error) {
	switch cfg.NotifySink {
	case config.NotifySinkRedis:
		rc, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redispub.New(rc.Client), func() { _ = rc.Close() }, nil
	case config.NotifySinkKafka:
		ks, err := kafka.New(kafka.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			ClientID: cfg.AppName,
		})
		if err != nil {
			return nil, nil, err
		}
		return ks, ks.Close, nil
	default:
		return logsink.New(log), func() {}, nil
	}
}

// Registry usa el registro remoto de tipos de mascota si está configurado.
func Registry(cfg config.Config) (capport.Registry, error) {
	if cfg.PetTypesURL == "" {
		return static.Default(), nil
	}
	client, err := pettypes.NewClient(pettypes.Config{
		BaseURL: cfg.PetTypesURL,
		APIKey:  cfg.PetTypesAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("pet types client: %w", err)
	}
	return pettypes.NewCached(client, petTypesCacheTTL), nil
}

// Verifier devuelve nil en modo dev (headers X-Debug-*).
func Verifier(cfg config.Config) (auth.AuthVerifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		return jwtauth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
	case config.AuthModeOdin:
		client, err := odin.NewClient(odin.Config{BaseURL: cfg.OdinURL, APIKey: cfg.OdinAPIKey})
		if err != nil {
			return nil, fmt.Errorf("odin client: %w", err)
		}
		return odin.NewVerifier(client), nil
	default:
		return nil, nil
	}
}
