package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quote(exchange, bid, ask string) domain.Quote {
	return domain.Quote{
		Exchange:   exchange,
		Symbol:     "XRP/USDC",
		Bid:        dec(bid),
		Ask:        dec(ask),
		ObservedAt: time.Now(),
	}
}

func TestEvaluateProfitableSpread(t *testing.T) {
	a := quote("alpha", "0.999", "1.000")
	b := quote("beta", "1.008", "1.010")
	fees := domain.FeeModel{RoundTripFee: dec("0.002")}

	opp, ok := Evaluate(a, b, fees, dec("0.001"), dec("250"))
	require.True(t, ok)
	require.NotNil(t, opp)

	assert.Equal(t, "alpha", opp.BuyExchange)
	assert.Equal(t, "beta", opp.SellExchange)
	assert.True(t, opp.BuyPrice.Equal(dec("1.000")))
	assert.True(t, opp.SellPrice.Equal(dec("1.008")))
	assert.True(t, opp.GrossSpread.Equal(dec("0.008")), "gross spread = %s", opp.GrossSpread)
	assert.True(t, opp.NetProfit.Equal(dec("0.006")), "net profit = %s", opp.NetProfit)
	assert.True(t, opp.Notional.Equal(dec("250")))
}

func TestEvaluateOrderIndependent(t *testing.T) {
	a := quote("alpha", "0.999", "1.000")
	b := quote("beta", "1.008", "1.010")
	fees := domain.FeeModel{RoundTripFee: dec("0.002")}

	oppAB, okAB := Evaluate(a, b, fees, dec("0.001"), dec("250"))
	oppBA, okBA := Evaluate(b, a, fees, dec("0.001"), dec("250"))
	require.True(t, okAB)
	require.True(t, okBA)
	assert.Equal(t, oppAB.BuyExchange, oppBA.BuyExchange)
	assert.Equal(t, oppAB.SellExchange, oppBA.SellExchange)
	assert.True(t, oppAB.NetProfit.Equal(oppBA.NetProfit))
}

func TestEvaluateIdenticalQuotes(t *testing.T) {
	a := quote("alpha", "1.000", "1.000")
	b := quote("beta", "1.000", "1.000")

	_, ok := Evaluate(a, b, domain.FeeModel{}, decimal.Zero, dec("100"))
	assert.False(t, ok, "zero spread must not be an opportunity")
}

func TestEvaluateNeverSameExchangeBothLegs(t *testing.T) {
	// Tied asks and tied bids resolve both legs to the lexicographically
	// smaller exchange, which the same-exchange guard must reject.
	a := quote("alpha", "1.005", "1.010")
	b := quote("beta", "1.005", "1.010")

	opp, ok := Evaluate(a, b, domain.FeeModel{}, decimal.Zero, dec("100"))
	if ok {
		require.NotEqual(t, opp.BuyExchange, opp.SellExchange)
	}
}

func TestEvaluateNegativeSpreadIsNotAnError(t *testing.T) {
	// Cheapest ask above highest bid: gross spread is negative, output is
	// simply "no opportunity".
	a := quote("alpha", "1.000", "1.002")
	b := quote("beta", "0.998", "1.001")

	_, ok := Evaluate(a, b, domain.FeeModel{RoundTripFee: dec("0.002")}, decimal.Zero, dec("100"))
	assert.False(t, ok)
}

func TestEvaluateSpreadBelowFeesAndThreshold(t *testing.T) {
	// Gross spread 0.8% exactly equals fee + threshold; strict inequality
	// means no trade.
	a := quote("alpha", "0.999", "1.000")
	b := quote("beta", "1.008", "1.010")
	fees := domain.FeeModel{RoundTripFee: dec("0.002")}

	_, ok := Evaluate(a, b, fees, dec("0.006"), dec("100"))
	assert.False(t, ok)
}

func TestEvaluateRejectsInvalidQuotes(t *testing.T) {
	good := quote("alpha", "0.999", "1.000")

	cases := map[string]domain.Quote{
		"zero bid":      quote("beta", "0", "1.010"),
		"negative ask":  quote("beta", "1.008", "-1"),
		"crossed book":  quote("beta", "1.020", "1.010"),
		"missing venue": quote("", "1.008", "1.010"),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Evaluate(good, bad, domain.FeeModel{}, decimal.Zero, dec("100"))
			assert.False(t, ok)
		})
	}
}

func TestEvaluateRejectsMismatchedSymbols(t *testing.T) {
	a := quote("alpha", "0.999", "1.000")
	b := quote("beta", "1.008", "1.010")
	b.Symbol = "BTC/USDC"

	_, ok := Evaluate(a, b, domain.FeeModel{}, decimal.Zero, dec("100"))
	assert.False(t, ok)
}

func TestEvaluateSameExchangeInput(t *testing.T) {
	a := quote("alpha", "0.999", "1.000")
	b := quote("alpha", "1.008", "1.010")

	_, ok := Evaluate(a, b, domain.FeeModel{}, decimal.Zero, dec("100"))
	assert.False(t, ok)
}

func TestEvaluateIsPure(t *testing.T) {
	a := quote("alpha", "0.999", "1.000")
	b := quote("beta", "1.008", "1.010")
	fees := domain.FeeModel{RoundTripFee: dec("0.002")}

	first, ok1 := Evaluate(a, b, fees, dec("0.001"), dec("250"))
	second, ok2 := Evaluate(a, b, fees, dec("0.001"), dec("250"))
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first.BuyExchange, second.BuyExchange)
	assert.Equal(t, first.SellExchange, second.SellExchange)
	assert.True(t, first.NetProfit.Equal(second.NetProfit))
}
