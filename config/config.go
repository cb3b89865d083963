// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int    `env:"PORT" envDefault:"5200"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"` // postgres | sqlite
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"market-cards.db"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// RandomSeed pins the draw PRNG; 0 seeds from crypto/rand.
	RandomSeed int64 `env:"RANDOM_SEED" envDefault:"0"`

	R2 R2Config
}

// R2Config configures the card-deck bucket polled by the catalog sync worker.
// Sync is disabled unless a bucket name is set.
type R2Config struct {
	AccountID       string        `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string        `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string        `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string        `env:"R2_BUCKET_NAME"`
	Endpoint        string        `env:"R2_ENDPOINT"`
	SyncPrefix      string        `env:"CARD_SYNC_PREFIX" envDefault:"decks/"`
	SyncInterval    time.Duration `env:"CARD_SYNC_INTERVAL" envDefault:"5m"`
}

// Enabled reports whether the bucket sync should run.
func (c R2Config) Enabled() bool {
	return c.Bucket != ""
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
// It returns whether a .env file was found so the caller can log it.
func Load() (*Config, bool, error) {
	found := godotenv.Load() == nil

	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, found, err
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, found, fmt.Errorf("unsupported DATABASE_DRIVER %q (want postgres or sqlite)", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, found, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return cfg, found, nil
}

// Origins splits ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
