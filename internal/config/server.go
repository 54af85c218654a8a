package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Store       string `env:"LEDGER_STORE" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"cipher-rooms.db"`

	CipherKey string `env:"CIPHER_KEY"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`

	OTELEndpoint    string `env:"OTEL_EXPORTER_ENDPOINT"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"cipher-rooms"`

	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"500"`

	NotifyEnabled     bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	NotifyTargetsJSON string `env:"NOTIFY_TARGETS_JSON"`
	NotifyConfigPath  string `env:"NOTIFY_CONFIG_PATH"`
	NotifyWorkers     int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyRetryMax    int    `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	NotifyRetryBaseMS int    `env:"NOTIFY_RETRY_BASE_MS" envDefault:"500"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	return cfg, cfg.validate()
}

func (c ServerConfig) validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("POSTGRES_DSN is required when LEDGER_STORE=%s", StorePostgres)
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when LEDGER_STORE=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", c.Store)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
}
