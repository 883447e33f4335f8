// Package config loads the server configuration from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds everything the server needs at startup. DATABASE_URL empty
// means "run on the in-memory store" (development only). REDIS_URL empty
// disables the read-through cache.
type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// CORSOrigin is the single frontend origin allowed to call the API.
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`

	// CreditFloorRaw is the most negative balance allowed, as a decimal
	// string. Parsed into CreditFloor by Load.
	CreditFloorRaw string `env:"CREDIT_FLOOR" envDefault:"-1000"`

	CreditFloor decimal.Decimal `env:"-"`
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.JWTSecret) < 16 {
		return Config{}, errors.New("JWT_SECRET must be at least 16 bytes")
	}

	floor, err := decimal.NewFromString(cfg.CreditFloorRaw)
	if err != nil {
		return Config{}, fmt.Errorf("parse CREDIT_FLOOR: %w", err)
	}
	if floor.IsPositive() {
		return Config{}, errors.New("CREDIT_FLOOR must be zero or negative")
	}
	cfg.CreditFloor = floor

	return cfg, nil
}
