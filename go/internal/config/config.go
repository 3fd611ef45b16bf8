// Package config loads process settings from the environment and market
// rules from YAML.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mcdev12/fantamarket/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	TLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	// StoreDriver selects Postgres or the in-memory store.
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"postgres"`
	DB             dbconfig.Config
	Redis          RedisConfig
	NATSURL        string   `env:"NATS_URL"`
	RulesPath      string   `env:"MARKET_RULES_PATH" envDefault:"go/config/market_rules.yaml"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"console"`
	TimerWorkers   int      `env:"TIMER_WORKERS" envDefault:"4"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads .env when present and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TimerWorkers < 1 {
		return Config{}, fmt.Errorf("TIMER_WORKERS must be positive, got %d", c.TimerWorkers)
	}
	return c, nil
}
