package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// Alerter is the operator notification surface the engine depends on.
// Routine events go through Notify; fatal exposure goes through Escalate.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
	Escalate(ctx context.Context, title, message string) error
}

// ExecutorConfig tunes the paired-order failure policy.
type ExecutorConfig struct {
	// SellRetries bounds the sell-leg attempts after a successful buy.
	SellRetries int
	// SellRetryBackoff is the pause between sell attempts.
	SellRetryBackoff time.Duration
	// RecoveryTimeout bounds the whole sell/reversal phase. Once the buy leg
	// has filled, this window is the only clock that matters: the caller's
	// cancellation no longer applies.
	RecoveryTimeout time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.SellRetries <= 0 {
		c.SellRetries = 3
	}
	if c.SellRetryBackoff <= 0 {
		c.SellRetryBackoff = 500 * time.Millisecond
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 2 * time.Minute
	}
	return c
}

// Executor realizes a decided opportunity as a buy on the cheap exchange
// followed immediately by a sell on the expensive one. The two legs are
// independent network operations against independent venues; there is no
// cross-exchange transaction, so the failure policy is explicit:
//
//   - buy fails: abort, nothing at risk
//   - sell fails: bounded retries, then a reversal sell on the buy exchange
//     to flatten the position at a loss
//   - reversal fails: the position is open; persist and escalate
type Executor struct {
	orders     domain.OrderSink
	executions domain.ExecutionStore
	alerter    Alerter
	cfg        ExecutorConfig
	logger     *slog.Logger
}

// NewExecutor creates an Executor. executions may not be nil; every attempt
// leaves a record regardless of outcome.
func NewExecutor(orders domain.OrderSink, executions domain.ExecutionStore, alerter Alerter, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	return &Executor{
		orders:     orders,
		executions: executions,
		alerter:    alerter,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one paired-order execution for a user and returns the terminal
// result. It never returns an error: every failure mode is a classified
// outcome, persisted and, when fatal, escalated.
func (e *Executor) Execute(ctx context.Context, userID string, opp domain.Opportunity, buyCreds, sellCreds domain.Credential) domain.ExecutionResult {
	log := e.logger.With(
		slog.String("user_id", userID),
		slog.String("symbol", opp.Symbol),
		slog.String("buy_exchange", opp.BuyExchange),
		slog.String("sell_exchange", opp.SellExchange),
	)

	result := domain.ExecutionResult{
		ID:           uuid.New().String(),
		UserID:       userID,
		Symbol:       opp.Symbol,
		BuyExchange:  opp.BuyExchange,
		SellExchange: opp.SellExchange,
		BuyPrice:     opp.BuyPrice,
		SellPrice:    opp.SellPrice,
		CreatedAt:    time.Now().UTC(),
	}

	// Pre-trade estimate; replaced with the fill quantity once the buy
	// confirms so the sell leg matches what was actually acquired.
	quantity := opp.Notional.Div(opp.BuyPrice)
	result.Quantity = quantity

	buyFill, err := e.orders.SubmitMarketOrder(ctx, buyCreds, opp.Symbol, domain.OrderSideBuy, quantity)
	if err != nil {
		log.Warn("buy leg failed", slog.String("error", err.Error()))
		result.Outcome = domain.ExecBuyFailed
		result.Error = err.Error()
		e.record(ctx, result)
		return result
	}
	result.BuyFill = &buyFill
	if buyFill.Quantity.IsPositive() {
		quantity = buyFill.Quantity
	} else if buyFill.Price.IsPositive() {
		quantity = opp.Notional.Div(buyFill.Price)
	}
	result.Quantity = quantity

	// The position is now open. From here on the caller's cancellation must
	// not interrupt flattening it, so the sell/reversal phase runs on a
	// detached context bounded only by the recovery timeout.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.RecoveryTimeout)
	defer cancel()

	var sellFill domain.Fill
	sellErr := retry(recCtx, e.cfg.SellRetries, e.cfg.SellRetryBackoff, func(ctx context.Context) error {
		var err error
		sellFill, err = e.orders.SubmitMarketOrder(ctx, sellCreds, opp.Symbol, domain.OrderSideSell, quantity)
		return err
	})
	if sellErr == nil {
		result.SellFill = &sellFill
		result.Outcome = domain.ExecSuccess
		log.Info("paired execution complete",
			slog.String("quantity", quantity.String()),
			slog.String("net_profit", opp.NetProfit.String()),
		)
		e.record(ctx, result)
		return result
	}

	log.Warn("sell leg failed after retries, attempting reversal",
		slog.String("error", sellErr.Error()),
		slog.Int("attempts", e.cfg.SellRetries),
	)

	// Best-effort reversal: dump the just-bought quantity back on the buy
	// exchange, accepting the loss, rather than hold an open position.
	reversalFill, revErr := e.orders.SubmitMarketOrder(recCtx, buyCreds, opp.Symbol, domain.OrderSideSell, quantity)
	if revErr == nil {
		result.ReversalFill = &reversalFill
		result.Outcome = domain.ExecSellFailedRecovered
		result.Error = fmt.Sprintf("sell leg: %v", sellErr)
		log.Warn("position flattened by reversal",
			slog.String("reversal_price", reversalFill.Price.String()),
		)
		e.record(ctx, result)
		return result
	}

	result.Outcome = domain.ExecSellFailedExposed
	result.Error = fmt.Sprintf("sell leg: %v; reversal: %v", sellErr, revErr)
	log.Error("position exposed: sell and reversal both failed",
		slog.String("quantity", quantity.String()),
		slog.String("sell_error", sellErr.Error()),
		slog.String("reversal_error", revErr.Error()),
	)
	e.record(ctx, result)
	e.escalate(recCtx, result, quantity.String())
	return result
}

func (e *Executor) record(ctx context.Context, r domain.ExecutionResult) {
	// Persist on a detached context: a cancelled scan must not lose the
	// record of a trade that already happened.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := e.executions.Create(saveCtx, r); err != nil {
		e.logger.Error("execution record failed",
			slog.String("execution_id", r.ID),
			slog.String("outcome", string(r.Outcome)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Executor) escalate(ctx context.Context, r domain.ExecutionResult, quantity string) {
	if e.alerter == nil {
		return
	}
	// Deliver on a detached context: the recovery window is usually spent by
	// the time exposure is confirmed, and this alert must still go out.
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	msg := fmt.Sprintf(
		"user %s holds %s %s bought on %s at %s; sell on %s failed and reversal failed: %s",
		r.UserID, quantity, r.Symbol, r.BuyExchange, r.BuyPrice, r.SellExchange, r.Error,
	)
	if err := e.alerter.Escalate(alertCtx, "open position requires attention", msg); err != nil {
		e.logger.Error("escalation delivery failed",
			slog.String("execution_id", r.ID),
			slog.String("error", err.Error()),
		)
	}
}
