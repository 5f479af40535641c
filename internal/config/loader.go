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
// built-in defaults, applies SPREADBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPREADBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "SPREADBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "SPREADBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SPREADBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SPREADBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "SPREADBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "SPREADBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SPREADBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "SPREADBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SPREADBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SPREADBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SPREADBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPREADBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SPREADBOT_REDIS_TLS_ENABLED")

	// ── Arbitrage ──
	setStr(&cfg.Arbitrage.Symbol, "SPREADBOT_ARBITRAGE_SYMBOL")
	setStr(&cfg.Arbitrage.ExchangeA, "SPREADBOT_ARBITRAGE_EXCHANGE_A")
	setStr(&cfg.Arbitrage.ExchangeB, "SPREADBOT_ARBITRAGE_EXCHANGE_B")
	setFloat64(&cfg.Arbitrage.RoundTripFee, "SPREADBOT_ARBITRAGE_ROUND_TRIP_FEE")
	setDuration(&cfg.Arbitrage.PollInterval, "SPREADBOT_ARBITRAGE_POLL_INTERVAL")
	setDuration(&cfg.Arbitrage.QuoteTTL, "SPREADBOT_ARBITRAGE_QUOTE_TTL")
	setDuration(&cfg.Arbitrage.ScanTimeout, "SPREADBOT_ARBITRAGE_SCAN_TIMEOUT")
	setInt(&cfg.Arbitrage.MaxConcurrentScans, "SPREADBOT_ARBITRAGE_MAX_CONCURRENT_SCANS")
	setInt(&cfg.Arbitrage.SellRetries, "SPREADBOT_ARBITRAGE_SELL_RETRIES")
	setDuration(&cfg.Arbitrage.SellRetryBackoff, "SPREADBOT_ARBITRAGE_SELL_RETRY_BACKOFF")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPREADBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPREADBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SPREADBOT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.AuthRateLimit, "SPREADBOT_SERVER_AUTH_RATE_LIMIT")
	setDuration(&cfg.Server.AuthRateWindow, "SPREADBOT_SERVER_AUTH_RATE_WINDOW")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "SPREADBOT_AUTH_JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "SPREADBOT_AUTH_TOKEN_TTL")
	setStr(&cfg.Auth.CredentialKey, "SPREADBOT_AUTH_CREDENTIAL_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPREADBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPREADBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPREADBOT_MODE")
	setStr(&cfg.LogLevel, "SPREADBOT_LOG_LEVEL")
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
