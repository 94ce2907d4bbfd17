package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AuthMode string

const (
	AuthModeDev  AuthMode = "dev"
	AuthModeJWT  AuthMode = "jwt"
	AuthModeOdin AuthMode = "odin"
)

type NotifySink string

const (
	NotifySinkLog   NotifySink = "log"
	NotifySinkRedis NotifySink = "redis"
	NotifySinkKafka NotifySink = "kafka"
)

// Config agrupa todo lo que cmd/api necesita para cablear dependencias.
// Si DB_DSN está vacío se usa storage in-memory (modo dev).
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBDSN         string `env:"DB_DSN"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	AppName   string `env:"APP_NAME" envDefault:"pet-rehoming"`

	AuthMode   AuthMode `env:"AUTH_MODE" envDefault:"dev"`
	JWTSecret  string   `env:"JWT_SECRET"`
	JWTIssuer  string   `env:"JWT_ISSUER"`
	OdinURL    string   `env:"ODIN_BASE_URL"`
	OdinAPIKey string   `env:"ODIN_API_KEY"`

	// Registro remoto de tipos de mascota; vacío => registro estático.
	PetTypesURL    string `env:"PET_TYPES_BASE_URL"`
	PetTypesAPIKey string `env:"PET_TYPES_API_KEY"`

	NotifySink    NotifySink    `env:"NOTIFY_SINK" envDefault:"log"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"2s"`
	RedisURL      string        `env:"REDIS_URL"`
	KafkaBrokers  []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string        `env:"KAFKA_TOPIC" envDefault:"rehoming.notifications"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load lee .env (si existe) y después el entorno.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse solo mira el entorno del proceso.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthModeDev:
	case AuthModeJWT:
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("config: JWT_SECRET required when AUTH_MODE=jwt")
		}
	case AuthModeOdin:
		if strings.TrimSpace(c.OdinURL) == "" || strings.TrimSpace(c.OdinAPIKey) == "" {
			return fmt.Errorf("config: ODIN_BASE_URL and ODIN_API_KEY required when AUTH_MODE=odin")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_MODE %q", c.AuthMode)
	}

	switch c.NotifySink {
	case NotifySinkLog:
	case NotifySinkRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("config: REDIS_URL required when NOTIFY_SINK=redis")
		}
	case NotifySinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config: KAFKA_BROKERS required when NOTIFY_SINK=kafka")
		}
	default:
		return fmt.Errorf("config: unknown NOTIFY_SINK %q", c.NotifySink)
	}
	return nil
}
