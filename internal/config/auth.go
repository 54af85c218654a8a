package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type AuthConfig struct {
	Secret   string        `env:"AUTH_SECRET,required,notEmpty"`
	Issuer   string        `env:"AUTH_ISSUER" envDefault:"cipher-rooms"`
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

func LoadAuth() (AuthConfig, error) {
	var cfg AuthConfig
	err := env.Parse(&cfg)
	return cfg, err
}
