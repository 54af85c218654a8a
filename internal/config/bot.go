package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL  string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	APIURL string `env:"API_URL" envDefault:"http://localhost:8080"`
	Token  string `env:"BOT_TOKEN"`
	RoomID uint64 `env:"ROOM_ID" envDefault:"0"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
