// Package config defines the top-level configuration for spreadbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SPREADBOT_* environment
// variables.
type Config struct {
	Database  DatabaseConfig            `toml:"database"`
	Redis     RedisConfig               `toml:"redis"`
	Exchanges map[string]ExchangeConfig `toml:"exchanges"`
	Arbitrage ArbitrageConfig           `toml:"arbitrage"`
	Server    ServerConfig              `toml:"server"`
	Auth      AuthConfig                `toml:"auth"`
	Notify    NotifyConfig              `toml:"notify"`
	Mode      string                    `toml:"mode"`
	LogLevel  string                    `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ExchangeConfig holds per-exchange connection parameters. API credentials
// are per-user and live in the database, not here.
type ExchangeConfig struct {
	BaseURL string `toml:"base_url"`
	// RateLimit is the max REST requests per RateWindow for this exchange.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// ArbitrageConfig holds the spread-capture parameters.
type ArbitrageConfig struct {
	// Symbol is the traded pair, e.g. "XRP/USDC".
	Symbol string `toml:"symbol"`
	// ExchangeA and ExchangeB name the two venues being compared. Both must
	// appear in the exchanges table.
	ExchangeA string `toml:"exchange_a"`
	ExchangeB string `toml:"exchange_b"`
	// RoundTripFee is the fraction of notional lost to fees across one buy
	// plus one sell. It varies per exchange pair and is operator-supplied;
	// there is no derivation.
	RoundTripFee float64 `toml:"round_trip_fee"`
	// PollInterval is the scanner tick cadence.
	PollInterval duration `toml:"poll_interval"`
	// QuoteTTL is how long fetched quotes stay fresh in the cache.
	QuoteTTL duration `toml:"quote_ttl"`
	// ScanTimeout bounds one user's scan including execution.
	ScanTimeout duration `toml:"scan_timeout"`
	// MaxConcurrentScans bounds how many users are scanned in parallel.
	MaxConcurrentScans int `toml:"max_concurrent_scans"`
	// SellRetries is the bounded retry count for the sell leg.
	SellRetries int `toml:"sell_retries"`
	// SellRetryBackoff is the pause between sell-leg retries.
	SellRetryBackoff duration `toml:"sell_retry_backoff"`
}

// FeeFraction returns the round-trip fee as a decimal fraction.
func (c ArbitrageConfig) FeeFraction() decimal.Decimal {
	return decimal.NewFromFloat(c.RoundTripFee)
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AuthRateLimit / AuthRateWindow throttle signup and login attempts per
	// client IP. A limit of 0 disables throttling.
	AuthRateLimit  int      `toml:"auth_rate_limit"`
	AuthRateWindow duration `toml:"auth_rate_window"`
}

// AuthConfig holds authentication and secret-storage parameters.
type AuthConfig struct {
	// JWTSecret signs session tokens for the HTTP API.
	JWTSecret string `toml:"jwt_secret"`
	// TokenTTL is how long issued tokens stay valid.
	TokenTTL duration `toml:"token_ttl"`
	// CredentialKey is the master passphrase used to encrypt stored exchange
	// API secrets at rest.
	CredentialKey string `toml:"credential_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "10s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10s" or "2m".
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
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "spreadbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Exchanges: map[string]ExchangeConfig{
			"cexio": {
				BaseURL:    "https://cex.io/api",
				RateLimit:  10,
				RateWindow: duration{time.Second},
			},
			"kraken": {
				BaseURL:    "https://api.kraken.com",
				RateLimit:  10,
				RateWindow: duration{time.Second},
			},
		},
		Arbitrage: ArbitrageConfig{
			Symbol:             "XRP/USDC",
			ExchangeA:          "cexio",
			ExchangeB:          "kraken",
			RoundTripFee:       0.0086,
			PollInterval:       duration{10 * time.Second},
			QuoteTTL:           duration{15 * time.Second},
			ScanTimeout:        duration{45 * time.Second},
			MaxConcurrentScans: 4,
			SellRetries:        3,
			SellRetryBackoff:   duration{500 * time.Millisecond},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8080,
			AuthRateLimit:  10,
			AuthRateWindow: duration{time.Minute},
		},
		Auth: AuthConfig{
			TokenTTL: duration{24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve": true,
	"scan":  true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for missing or inconsistent values and
// returns a single error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, scan, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Arbitrage.Symbol == "" {
		errs = append(errs, "arbitrage: symbol must not be empty")
	}
	if c.Arbitrage.ExchangeA == "" || c.Arbitrage.ExchangeB == "" {
		errs = append(errs, "arbitrage: exchange_a and exchange_b must both be set")
	} else if c.Arbitrage.ExchangeA == c.Arbitrage.ExchangeB {
		errs = append(errs, "arbitrage: exchange_a and exchange_b must differ")
	}
	for _, name := range []string{c.Arbitrage.ExchangeA, c.Arbitrage.ExchangeB} {
		if name == "" {
			continue
		}
		ex, ok := c.Exchanges[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("exchanges: missing configuration for %q", name))
			continue
		}
		if ex.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("exchanges.%s: base_url must not be empty", name))
		}
	}
	if c.Arbitrage.RoundTripFee < 0 || c.Arbitrage.RoundTripFee >= 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: round_trip_fee must be in [0,1), got %v", c.Arbitrage.RoundTripFee))
	}
	if c.Arbitrage.PollInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: poll_interval must be positive")
	}
	if c.Arbitrage.SellRetries < 1 {
		errs = append(errs, "arbitrage: sell_retries must be at least 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be in 1..65535, got %d", c.Server.Port))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, "auth: jwt_secret must be set when the server is enabled")
		}
	}

	if c.Auth.CredentialKey == "" {
		errs = append(errs, "auth: credential_key must be set (encrypts stored API secrets)")
	}

	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "") {
		errs = append(errs, "database: either dsn or host/database/user must be set")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
