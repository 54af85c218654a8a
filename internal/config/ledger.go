package config

import "github.com/caarlos0/env/v11"

type LedgerConfig struct {
	Admin    string `env:"LEDGER_ADMIN,required,notEmpty"`
	House    string `env:"LEDGER_HOUSE_ACCOUNT" envDefault:"house"`
	MinStake int64  `env:"LEDGER_MIN_STAKE" envDefault:"1"`
	MaxStake int64  `env:"LEDGER_MAX_STAKE" envDefault:"1000000"`
}

func LoadLedger() (LedgerConfig, error) {
	var cfg LedgerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
