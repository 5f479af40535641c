package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Symbol:       "XRP/USDC",
		BuyExchange:  "alpha",
		SellExchange: "beta",
		BuyPrice:     dec("1.000"),
		SellPrice:    dec("1.008"),
		GrossSpread:  dec("0.008"),
		NetProfit:    dec("0.006"),
		Notional:     dec("250"),
		DetectedAt:   time.Now(),
	}
}

func testCreds() (domain.Credential, domain.Credential) {
	return domain.Credential{UserID: "user-1", Exchange: "alpha", APIKey: "ka", APISecret: "sa"},
		domain.Credential{UserID: "user-1", Exchange: "beta", APIKey: "kb", APISecret: "sb"}
}

func fastConfig() ExecutorConfig {
	return ExecutorConfig{
		SellRetries:      3,
		SellRetryBackoff: time.Millisecond,
		RecoveryTimeout:  5 * time.Second,
	}
}

func TestExecuteSuccess(t *testing.T) {
	sink := newScriptedSink(func(call orderCall, _ int) (domain.Fill, error) {
		switch {
		case call.Exchange == "alpha" && call.Side == domain.OrderSideBuy:
			return domain.Fill{OrderID: "buy-1", Price: dec("1.0005"), Quantity: dec("249.875")}, nil
		case call.Exchange == "beta" && call.Side == domain.OrderSideSell:
			return domain.Fill{OrderID: "sell-1", Price: dec("1.008")}, nil
		}
		return domain.Fill{}, errors.New("unexpected call")
	})
	store := &memExecutionStore{}
	alerter := &memAlerter{}
	ex := NewExecutor(sink, store, alerter, fastConfig(), discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(context.Background(), "user-1", testOpportunity(), buyCreds, sellCreds)

	assert.Equal(t, domain.ExecSuccess, res.Outcome)
	require.NotNil(t, res.BuyFill)
	require.NotNil(t, res.SellFill)
	assert.Nil(t, res.ReversalFill)
	assert.False(t, res.Outcome.Fatal())

	// Sell quantity equals the buy fill quantity, not the pre-trade estimate.
	calls := sink.callLog()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.OrderSideBuy, calls[0].Side)
	assert.Equal(t, domain.OrderSideSell, calls[1].Side)
	assert.True(t, calls[1].Quantity.Equal(dec("249.875")))

	// Exactly one persisted record.
	require.Len(t, store.all(), 1)
	assert.Empty(t, alerter.escalated())
}

func TestExecuteBuyFailed(t *testing.T) {
	sink := newScriptedSink(func(call orderCall, _ int) (domain.Fill, error) {
		return domain.Fill{}, errors.New("insufficient funds")
	})
	store := &memExecutionStore{}
	ex := NewExecutor(sink, store, &memAlerter{}, fastConfig(), discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(context.Background(), "user-1", testOpportunity(), buyCreds, sellCreds)

	assert.Equal(t, domain.ExecBuyFailed, res.Outcome)
	assert.Nil(t, res.BuyFill)
	assert.Contains(t, res.Error, "insufficient funds")

	// No sell ever attempted: original state, no exposure.
	require.Len(t, sink.callLog(), 1)
	require.Len(t, store.all(), 1)
}

func TestExecuteSellRetriesThenReversalRecovers(t *testing.T) {
	sink := newScriptedSink(func(call orderCall, nth int) (domain.Fill, error) {
		switch {
		case call.Exchange == "alpha" && call.Side == domain.OrderSideBuy:
			return domain.Fill{OrderID: "buy-1", Price: dec("1.000"), Quantity: dec("250")}, nil
		case call.Exchange == "beta" && call.Side == domain.OrderSideSell:
			return domain.Fill{}, errors.New("rate limited")
		case call.Exchange == "alpha" && call.Side == domain.OrderSideSell:
			// Reversal fill below the buy price: bounded realized loss.
			return domain.Fill{OrderID: "rev-1", Price: dec("0.999")}, nil
		}
		return domain.Fill{}, errors.New("unexpected call")
	})
	store := &memExecutionStore{}
	alerter := &memAlerter{}
	ex := NewExecutor(sink, store, alerter, fastConfig(), discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(context.Background(), "user-1", testOpportunity(), buyCreds, sellCreds)

	assert.Equal(t, domain.ExecSellFailedRecovered, res.Outcome)
	assert.False(t, res.Outcome.Fatal())
	require.NotNil(t, res.ReversalFill)
	assert.True(t, res.ReversalFill.Quantity.Equal(dec("250")), "reversal flattens the full bought quantity")

	// 1 buy + 3 sell attempts + 1 reversal.
	calls := sink.callLog()
	require.Len(t, calls, 5)
	assert.Equal(t, "alpha", calls[4].Exchange)
	assert.Equal(t, domain.OrderSideSell, calls[4].Side)

	// Recovered is not an escalation.
	assert.Empty(t, alerter.escalated())
}

func TestExecuteSellAndReversalFailEscalates(t *testing.T) {
	sink := newScriptedSink(func(call orderCall, _ int) (domain.Fill, error) {
		if call.Exchange == "alpha" && call.Side == domain.OrderSideBuy {
			return domain.Fill{OrderID: "buy-1", Price: dec("1.000"), Quantity: dec("250")}, nil
		}
		return domain.Fill{}, errors.New("venue down")
	})
	store := &memExecutionStore{}
	alerter := &memAlerter{}
	ex := NewExecutor(sink, store, alerter, fastConfig(), discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(context.Background(), "user-1", testOpportunity(), buyCreds, sellCreds)

	assert.Equal(t, domain.ExecSellFailedExposed, res.Outcome)
	assert.True(t, res.Outcome.Fatal())
	assert.Contains(t, res.Error, "sell leg")
	assert.Contains(t, res.Error, "reversal")

	// The exposure is surfaced loudly with venues and quantity, never
	// swallowed.
	escalations := alerter.escalated()
	require.Len(t, escalations, 1)
	assert.Contains(t, escalations[0], "alpha")
	assert.Contains(t, escalations[0], "beta")
	assert.Contains(t, escalations[0], "250")

	require.Len(t, store.all(), 1)
	assert.Equal(t, domain.ExecSellFailedExposed, store.all()[0].Outcome)
}

func TestExecuteRecoveryOutlivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sink := newScriptedSink(func(call orderCall, nth int) (domain.Fill, error) {
		switch {
		case call.Side == domain.OrderSideBuy:
			// Cancel the caller right after the position opens.
			cancel()
			return domain.Fill{OrderID: "buy-1", Price: dec("1.000"), Quantity: dec("250")}, nil
		case call.Exchange == "beta":
			return domain.Fill{OrderID: "sell-1", Price: dec("1.008")}, nil
		}
		return domain.Fill{}, errors.New("unexpected call")
	})
	store := &memExecutionStore{}
	ex := NewExecutor(sink, store, &memAlerter{}, fastConfig(), discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(ctx, "user-1", testOpportunity(), buyCreds, sellCreds)

	// The sell leg still ran and the trade completed despite cancellation.
	assert.Equal(t, domain.ExecSuccess, res.Outcome)
	require.Len(t, store.all(), 1)
}

// deadlineAlerter refuses delivery once its context is done, the way real
// senders do when they build requests with http.NewRequestWithContext.
type deadlineAlerter struct {
	mu        sync.Mutex
	delivered []string
	rejected  []error
}

func (a *deadlineAlerter) Notify(ctx context.Context, _, _, _ string) error {
	return ctx.Err()
}

func (a *deadlineAlerter) Escalate(ctx context.Context, _, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		a.rejected = append(a.rejected, err)
		return err
	}
	a.delivered = append(a.delivered, message)
	return nil
}

func (a *deadlineAlerter) log() (delivered []string, rejected []error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.delivered...), append([]error(nil), a.rejected...)
}

func TestExecuteExposureAlertSurvivesSpentRecoveryWindow(t *testing.T) {
	sink := newScriptedSink(func(call orderCall, _ int) (domain.Fill, error) {
		if call.Side == domain.OrderSideBuy {
			return domain.Fill{OrderID: "buy-1", Price: dec("1.000"), Quantity: dec("250")}, nil
		}
		return domain.Fill{}, errors.New("venue rejected order")
	})
	store := &memExecutionStore{}
	alerter := &deadlineAlerter{}
	cfg := fastConfig()
	// The recovery window is spent before the sell leg even starts, so both
	// the sell and the reversal fail against a dead deadline.
	cfg.RecoveryTimeout = time.Nanosecond
	ex := NewExecutor(sink, store, alerter, cfg, discardLogger())

	buyCreds, sellCreds := testCreds()
	res := ex.Execute(context.Background(), "user-1", testOpportunity(), buyCreds, sellCreds)

	require.Equal(t, domain.ExecSellFailedExposed, res.Outcome)

	// The exposure alert must still reach the alerter on a live context.
	delivered, rejected := alerter.log()
	require.Len(t, delivered, 1, "exposure alert was never delivered")
	assert.Empty(t, rejected)
	assert.Contains(t, delivered[0], "alpha")
	assert.Contains(t, delivered[0], "250")
}

func TestRetryStopsAfterSuccess(t *testing.T) {
	attempts := 0
	err := retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryReturnsLastError(t *testing.T) {
	attempts := 0
	err := retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "still failing")
}
