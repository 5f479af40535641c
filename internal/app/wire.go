package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmcalloway/spreadbot/internal/cache/redis"
	"github.com/tmcalloway/spreadbot/internal/config"
	"github.com/tmcalloway/spreadbot/internal/crypto"
	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/exchange"
	"github.com/tmcalloway/spreadbot/internal/exchange/cexio"
	"github.com/tmcalloway/spreadbot/internal/exchange/kraken"
	"github.com/tmcalloway/spreadbot/internal/notify"
	"github.com/tmcalloway/spreadbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	UserStore       domain.UserStore
	CredentialStore domain.CredentialStore
	PreferenceStore domain.PreferenceStore
	ExecutionStore  domain.ExecutionStore

	// Caches and coordination
	QuoteCache       domain.QuoteCache
	OpportunityCache domain.OpportunityCache
	RateLimiter      domain.RateLimiter
	LockManager      domain.LockManager

	// Exchange access. The registry implements domain.QuoteSource,
	// domain.OrderSink, and domain.BalanceSource.
	Exchanges *exchange.Registry

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Secret storage for exchange API credentials ---
	box, err := crypto.NewSecretBox(cfg.Auth.CredentialKey)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: secret box: %w", err)
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.UserStore = postgres.NewUserStore(pool)
	deps.CredentialStore = postgres.NewCredentialStore(pool, box)
	deps.PreferenceStore = postgres.NewPreferenceStore(pool)
	deps.ExecutionStore = postgres.NewExecutionStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.OpportunityCache = redis.NewOpportunityCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Exchange connectors ---
	connectors := make(map[string]exchange.Connector, len(cfg.Exchanges))
	for name, ex := range cfg.Exchanges {
		switch name {
		case cexio.Name:
			connectors[name] = cexio.NewClient(ex.BaseURL)
		case kraken.Name:
			connectors[name] = kraken.NewClient(ex.BaseURL)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("wire: no connector for exchange %q", name)
		}
	}
	deps.Exchanges = exchange.NewRegistry(connectors)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
