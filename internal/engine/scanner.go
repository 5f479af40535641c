package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/notify"
)

// scannerLockKey names the distributed lock that keeps exactly one scanner
// active across restarts and replicas.
const scannerLockKey = "scanner"

// RateLimit is the request budget for one exchange.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// ScannerConfig tunes the polling loop.
type ScannerConfig struct {
	Symbol    string
	ExchangeA string
	ExchangeB string
	// Fee is the round-trip fee fraction for this exchange pair. It comes
	// from configuration; there is no derivation.
	Fee decimal.Decimal

	PollInterval time.Duration
	// QuoteTTL bounds how long a cached quote may serve evaluations.
	QuoteTTL time.Duration
	// ScanTimeout bounds one user's scan so a hung network call cannot stall
	// the rest of the tick.
	ScanTimeout time.Duration
	// MaxConcurrentScans bounds how many users are scanned in parallel.
	MaxConcurrentScans int

	// RateLimits throttles outbound calls per exchange.
	RateLimits map[string]RateLimit
}

func (c ScannerConfig) withDefaults() ScannerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.QuoteTTL <= 0 {
		c.QuoteTTL = 15 * time.Second
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 45 * time.Second
	}
	if c.MaxConcurrentScans <= 0 {
		c.MaxConcurrentScans = 4
	}
	return c
}

// lockTTL is sized so the lock survives a missed tick but frees quickly when
// the process dies.
func (c ScannerConfig) lockTTL() time.Duration {
	return 2 * c.PollInterval
}

// Scanner drives the recurring opportunity scan: each tick it enumerates
// every user with trading enabled, evaluates the spread for them, publishes
// the result, and hands actionable opportunities to the executor. One user's
// failure never blocks another user or the next tick.
type Scanner struct {
	cfg      ScannerConfig
	prefs    domain.PreferenceStore
	creds    domain.CredentialStore
	quotes   domain.QuoteSource
	cache    domain.QuoteCache
	opps     domain.OpportunityCache
	locks    domain.LockManager
	limiter  domain.RateLimiter
	executor *Executor
	alerter  Alerter
	logger   *slog.Logger
}

// NewScanner creates a Scanner. cache, limiter, and alerter may be nil; the
// scanner then fetches quotes uncached, unthrottled, and stays silent.
func NewScanner(
	cfg ScannerConfig,
	prefs domain.PreferenceStore,
	creds domain.CredentialStore,
	quotes domain.QuoteSource,
	cache domain.QuoteCache,
	opps domain.OpportunityCache,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	executor *Executor,
	alerter Alerter,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		cfg:      cfg.withDefaults(),
		prefs:    prefs,
		creds:    creds,
		quotes:   quotes,
		cache:    cache,
		opps:     opps,
		locks:    locks,
		limiter:  limiter,
		executor: executor,
		alerter:  alerter,
		logger:   logger.With(slog.String("component", "scanner")),
	}
}

// Run acquires the scanner lock and polls until the context is cancelled. It
// returns domain.ErrLockHeld when another scanner instance already owns the
// lock, which makes a duplicate start a no-op rather than duplicate work.
func (s *Scanner) Run(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, scannerLockKey, s.cfg.lockTTL())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Warn("scanner already running elsewhere, not starting")
		}
		return fmt.Errorf("engine: scanner start: %w", err)
	}
	defer unlock()

	s.logger.Info("scanner started",
		slog.String("symbol", s.cfg.Symbol),
		slog.String("exchange_a", s.cfg.ExchangeA),
		slog.String("exchange_b", s.cfg.ExchangeB),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
	defer s.logger.Info("scanner stopped")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// First tick immediately; the ticker covers the rest.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.locks.Refresh(ctx, scannerLockKey, s.cfg.lockTTL()); err != nil {
				// Lost the lease; another instance may have taken over.
				return fmt.Errorf("engine: scanner lock lost: %w", err)
			}
			s.tick(ctx)
		}
	}
}

// tick scans every tradable user with bounded concurrency. Per-user failures
// are logged at the boundary and never propagate.
func (s *Scanner) tick(ctx context.Context) {
	prefs, err := s.prefs.ListTradable(ctx)
	if err != nil {
		s.logger.Error("list tradable users failed", slog.String("error", err.Error()))
		return
	}
	if len(prefs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentScans)

	for _, pref := range prefs {
		g.Go(func() error {
			userCtx, cancel := context.WithTimeout(gctx, s.cfg.ScanTimeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("user scan panicked",
						slog.String("user_id", pref.UserID),
						slog.Any("panic", r),
					)
				}
			}()

			if err := s.scanUser(userCtx, pref); err != nil {
				s.logger.Warn("user scan failed",
					slog.String("user_id", pref.UserID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// scanUser runs one user's full pipeline: quotes, evaluation, publication,
// and optionally execution.
func (s *Scanner) scanUser(ctx context.Context, pref domain.TradePreference) error {
	quoteA, err := s.quote(ctx, s.cfg.ExchangeA)
	if err != nil {
		return fmt.Errorf("quote %s: %w", s.cfg.ExchangeA, err)
	}
	quoteB, err := s.quote(ctx, s.cfg.ExchangeB)
	if err != nil {
		return fmt.Errorf("quote %s: %w", s.cfg.ExchangeB, err)
	}

	opp, ok := Evaluate(quoteA, quoteB, domain.FeeModel{RoundTripFee: s.cfg.Fee}, pref.ProfitThreshold, pref.NotionalAmount)

	if s.opps != nil {
		if err := s.opps.Set(ctx, pref.UserID, opp, 2*s.cfg.PollInterval); err != nil {
			s.logger.Warn("opportunity publish failed",
				slog.String("user_id", pref.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
	if !ok {
		return nil
	}

	s.logger.Info("opportunity detected",
		slog.String("user_id", pref.UserID),
		slog.String("buy_exchange", opp.BuyExchange),
		slog.String("sell_exchange", opp.SellExchange),
		slog.String("net_profit", opp.NetProfit.String()),
	)
	if s.alerter != nil {
		_ = s.alerter.Notify(ctx, notify.EventOpportunity, "spread opportunity",
			fmt.Sprintf("%s: buy %s at %s, sell %s at %s, net %s",
				opp.Symbol, opp.BuyExchange, opp.BuyPrice, opp.SellExchange, opp.SellPrice, opp.NetProfit))
	}

	// Tradable() re-checks the notional guard; a zero amount never trades
	// even with the flag on.
	if s.executor == nil || !pref.Tradable() {
		return nil
	}

	buyCreds, err := s.creds.Get(ctx, pref.UserID, opp.BuyExchange)
	if err != nil {
		return fmt.Errorf("credentials %s: %w", opp.BuyExchange, err)
	}
	sellCreds, err := s.creds.Get(ctx, pref.UserID, opp.SellExchange)
	if err != nil {
		return fmt.Errorf("credentials %s: %w", opp.SellExchange, err)
	}

	result := s.executor.Execute(ctx, pref.UserID, *opp, buyCreds, sellCreds)
	s.logger.Info("execution finished",
		slog.String("user_id", pref.UserID),
		slog.String("outcome", string(result.Outcome)),
	)
	return nil
}

// quote returns the current quote for one exchange, serving from the cache
// when fresh and throttling live fetches through the rate limiter.
func (s *Scanner) quote(ctx context.Context, exchange string) (domain.Quote, error) {
	if s.cache != nil {
		if q, err := s.cache.Get(ctx, exchange, s.cfg.Symbol); err == nil {
			return q, nil
		}
	}

	if s.limiter != nil {
		if rl, ok := s.cfg.RateLimits[exchange]; ok && rl.Limit > 0 {
			if err := s.limiter.Wait(ctx, exchange, rl.Limit, rl.Window); err != nil {
				return domain.Quote{}, err
			}
		}
	}

	q, err := s.quotes.GetQuote(ctx, exchange, s.cfg.Symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := q.Validate(); err != nil {
		return domain.Quote{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, q, s.cfg.QuoteTTL); err != nil {
			s.logger.Warn("quote cache write failed",
				slog.String("exchange", exchange),
				slog.String("error", err.Error()),
			)
		}
	}
	return q, nil
}
