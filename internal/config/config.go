package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// PublicBaseURL, when set, is used to build the share links returned on
	// room creation; otherwise the request host is used.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	CatalogURL     string        `env:"CATALOG_URL" envDefault:"https://assets.deadlock-api.com/v2/heroes"`
	CatalogRefresh time.Duration `env:"CATALOG_REFRESH" envDefault:"10m"`

	RoomTTL       time.Duration `env:"ROOM_TTL" envDefault:"20m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	Debug bool `env:"DEBUG"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
