package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADEDESK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADEDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject endpoints and secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Exchange.APIURL, "TRADEDESK_EXCHANGE_API_URL")
	setStr(&cfg.Exchange.WSURL, "TRADEDESK_EXCHANGE_WS_URL")
	setDuration(&cfg.Exchange.ReconnectDelay, "TRADEDESK_EXCHANGE_RECONNECT_DELAY")

	setDuration(&cfg.Candles.Interval, "TRADEDESK_CANDLES_INTERVAL")
	setInt(&cfg.Candles.MaxHistory, "TRADEDESK_CANDLES_MAX_HISTORY")

	setFloat64(&cfg.Bot.MinPrice, "TRADEDESK_BOT_MIN_PRICE")
	setFloat64(&cfg.Bot.MaxPrice, "TRADEDESK_BOT_MAX_PRICE")
	setInt64(&cfg.Bot.MinQty, "TRADEDESK_BOT_MIN_QTY")
	setInt64(&cfg.Bot.MaxQty, "TRADEDESK_BOT_MAX_QTY")
	setDuration(&cfg.Bot.Interval, "TRADEDESK_BOT_INTERVAL")
	setInt64(&cfg.Bot.SubmitterID, "TRADEDESK_BOT_SUBMITTER_ID")

	setBool(&cfg.Redis.Enabled, "TRADEDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADEDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADEDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADEDESK_REDIS_TLS_ENABLED")

	setBool(&cfg.Postgres.Enabled, "TRADEDESK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADEDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADEDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADEDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADEDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADEDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADEDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADEDESK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADEDESK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADEDESK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADEDESK_POSTGRES_RUN_MIGRATIONS")

	setInt(&cfg.Server.Port, "TRADEDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEDESK_SERVER_CORS_ORIGINS")

	setStr(&cfg.LogLevel, "TRADEDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
