package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const minimalConfig = `
mode = "full"

[auth]
jwt_secret = "test-jwt-secret"
credential_key = "test-credential-key"
`

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Values not in the file come from defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "XRP/USDC", cfg.Arbitrage.Symbol)
	assert.Equal(t, "cexio", cfg.Arbitrage.ExchangeA)
	assert.Equal(t, "kraken", cfg.Arbitrage.ExchangeB)
	assert.Equal(t, 10*time.Second, cfg.Arbitrage.PollInterval.Duration)
	assert.Equal(t, 8080, cfg.Server.Port)

	// Values from the file win.
	assert.Equal(t, "test-jwt-secret", cfg.Auth.JWTSecret)
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	path := writeConfigFile(t, minimalConfig+`
[arbitrage]
symbol = "BTC/USDT"
round_trip_fee = 0.004
poll_interval = "30s"
sell_retry_backoff = "250ms"

[exchanges.cexio]
base_url = "http://localhost:9001"
rate_limit = 5
rate_window = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC/USDT", cfg.Arbitrage.Symbol)
	assert.Equal(t, 0.004, cfg.Arbitrage.RoundTripFee)
	assert.Equal(t, 30*time.Second, cfg.Arbitrage.PollInterval.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Arbitrage.SellRetryBackoff.Duration)
	assert.Equal(t, "0.004", cfg.Arbitrage.FeeFraction().String())

	ex := cfg.Exchanges["cexio"]
	assert.Equal(t, "http://localhost:9001", ex.BaseURL)
	assert.Equal(t, 5, ex.RateLimit)
	assert.Equal(t, 2*time.Second, ex.RateWindow.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("SPREADBOT_DATABASE_PASSWORD", "env-password")
	t.Setenv("SPREADBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SPREADBOT_ARBITRAGE_POLL_INTERVAL", "5s")
	t.Setenv("SPREADBOT_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SPREADBOT_MODE", "scan")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-password", cfg.Database.Password)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Arbitrage.PollInterval.Duration)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "scan", cfg.Mode)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "batch" },
			wantErr: "unknown mode",
		},
		{
			name:    "same exchange twice",
			mutate:  func(c *Config) { c.Arbitrage.ExchangeB = c.Arbitrage.ExchangeA },
			wantErr: "must differ",
		},
		{
			name:    "unconfigured exchange",
			mutate:  func(c *Config) { c.Arbitrage.ExchangeB = "binanceus" },
			wantErr: `missing configuration for "binanceus"`,
		},
		{
			name:    "fee out of range",
			mutate:  func(c *Config) { c.Arbitrage.RoundTripFee = 1.5 },
			wantErr: "round_trip_fee",
		},
		{
			name:    "missing jwt secret with server enabled",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "missing credential key",
			mutate:  func(c *Config) { c.Auth.CredentialKey = "" },
			wantErr: "credential_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Auth.JWTSecret = "s"
			cfg.Auth.CredentialKey = "k"
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "db-pass"
	cfg.Auth.JWTSecret = "jwt-secret"
	cfg.Auth.CredentialKey = "cred-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Auth.JWTSecret)
	assert.Equal(t, "***", red.Auth.CredentialKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched, and non-secret fields survive.
	assert.Equal(t, "db-pass", cfg.Database.Password)
	assert.Equal(t, cfg.Server.Port, red.Server.Port)
}
