// Package config defines the top-level configuration for tradedesk and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADEDESK_* environment
// variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Candles  CandlesConfig  `toml:"candles"`
	Bot      BotConfig      `toml:"bot"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig holds the backend endpoints and the feed reconnect policy.
type ExchangeConfig struct {
	APIURL         string   `toml:"api_url"`
	WSURL          string   `toml:"ws_url"`
	ReconnectDelay duration `toml:"reconnect_delay"`
}

// CandlesConfig holds candle aggregation parameters.
type CandlesConfig struct {
	Interval   duration `toml:"interval"`
	MaxHistory int      `toml:"max_history"`
}

// BotConfig holds the synthetic order generator parameters.
type BotConfig struct {
	MinPrice    float64  `toml:"min_price"`
	MaxPrice    float64  `toml:"max_price"`
	MinQty      int64    `toml:"min_qty"`
	MaxQty      int64    `toml:"max_qty"`
	Interval    duration `toml:"interval"`
	SubmitterID int64    `toml:"submitter_id"`
}

// RedisConfig holds Redis connection parameters. When disabled, events stay
// on the in-process bus and the depth mirror is skipped.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds parameters for the optional trade audit store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "250ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			APIURL:         "http://localhost:8080",
			WSURL:          "ws://localhost:8080/ws",
			ReconnectDelay: duration{3 * time.Second},
		},
		Candles: CandlesConfig{
			Interval:   duration{5 * time.Second},
			MaxHistory: 500,
		},
		Bot: BotConfig{
			MinPrice:    90,
			MaxPrice:    110,
			MinQty:      1,
			MaxQty:      20,
			Interval:    duration{time.Second},
			SubmitterID: 100,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "tradedesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Exchange.APIURL == "" {
		errs = append(errs, "exchange: api_url must not be empty")
	}
	if c.Exchange.WSURL == "" {
		errs = append(errs, "exchange: ws_url must not be empty")
	}
	if c.Exchange.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "exchange: reconnect_delay must be positive")
	}

	if c.Candles.Interval.Duration <= 0 {
		errs = append(errs, "candles: interval must be positive")
	}
	if c.Candles.MaxHistory < 1 {
		errs = append(errs, "candles: max_history must be >= 1")
	}

	if c.Bot.MinPrice <= 0 {
		errs = append(errs, "bot: min_price must be > 0")
	}
	if c.Bot.MaxPrice < c.Bot.MinPrice {
		errs = append(errs, "bot: max_price must be >= min_price")
	}
	if c.Bot.MinQty < 1 {
		errs = append(errs, "bot: min_qty must be >= 1")
	}
	if c.Bot.MaxQty < c.Bot.MinQty {
		errs = append(errs, "bot: max_qty must be >= min_qty")
	}
	if c.Bot.Interval.Duration <= 0 {
		errs = append(errs, "bot: interval must be positive")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
