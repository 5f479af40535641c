package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/engine"
	"github.com/tmcalloway/spreadbot/internal/server"
	"github.com/tmcalloway/spreadbot/internal/server/handler"
)

// ServeMode runs only the HTTP API: accounts, credentials, preferences,
// balances, and the scanner's published results. A separate scan-mode
// process is expected to do the polling.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, deps)
	return g.Wait()
}

// ScanMode runs only the scan engine: poll quotes, evaluate spreads, publish
// opportunities, and execute for users with auto-trade enabled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scanner := a.buildScanner(deps)
	return scanner.Run(ctx)
}

// FullMode runs the HTTP API and the scan engine in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, deps)

	scanner := a.buildScanner(deps)
	g.Go(func() error {
		err := scanner.Run(ctx)
		// Another replica holding the scanner lock is not a reason to stop
		// serving the API from this one.
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.WarnContext(ctx, "scanner lock held elsewhere, serving API only")
			return nil
		}
		return err
	})

	return g.Wait()
}

// runServer starts the HTTP server on the group and shuts it down gracefully
// when the context is cancelled. It is a no-op when the server is disabled.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	srv := a.buildServer(deps)
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}

func (a *App) buildServer(deps *Dependencies) *server.Server {
	logger := a.logger
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Auth: handler.NewAuthHandler(
			deps.UserStore, a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL.Duration, logger,
		),
		Keys:       handler.NewKeysHandler(deps.CredentialStore, deps.Exchanges.Names(), logger),
		Preference: handler.NewPreferenceHandler(deps.PreferenceStore, logger),
		Balance: handler.NewBalanceHandler(
			deps.CredentialStore, deps.Exchanges, a.cfg.Arbitrage.Symbol, logger,
		),
		Opportunity: handler.NewOpportunityHandler(deps.OpportunityCache, deps.ExecutionStore, logger),
	}

	return server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		JWTSecret:      a.cfg.Auth.JWTSecret,
		AuthRateLimit:  a.cfg.Server.AuthRateLimit,
		AuthRateWindow: a.cfg.Server.AuthRateWindow.Duration,
	}, handlers, deps.RateLimiter, logger)
}

func (a *App) buildScanner(deps *Dependencies) *engine.Scanner {
	arb := a.cfg.Arbitrage

	executor := engine.NewExecutor(deps.Exchanges, deps.ExecutionStore, deps.Notifier, engine.ExecutorConfig{
		SellRetries:      arb.SellRetries,
		SellRetryBackoff: arb.SellRetryBackoff.Duration,
	}, a.logger)

	limits := make(map[string]engine.RateLimit, len(a.cfg.Exchanges))
	for name, ex := range a.cfg.Exchanges {
		limits[name] = engine.RateLimit{Limit: ex.RateLimit, Window: ex.RateWindow.Duration}
	}

	return engine.NewScanner(engine.ScannerConfig{
		Symbol:             arb.Symbol,
		ExchangeA:          arb.ExchangeA,
		ExchangeB:          arb.ExchangeB,
		Fee:                arb.FeeFraction(),
		PollInterval:       arb.PollInterval.Duration,
		QuoteTTL:           arb.QuoteTTL.Duration,
		ScanTimeout:        arb.ScanTimeout.Duration,
		MaxConcurrentScans: arb.MaxConcurrentScans,
		RateLimits:         limits,
	},
		deps.PreferenceStore,
		deps.CredentialStore,
		deps.Exchanges,
		deps.QuoteCache,
		deps.OpportunityCache,
		deps.LockManager,
		deps.RateLimiter,
		executor,
		deps.Notifier,
		a.logger,
	)
}
