// Package engine holds the arbitrage core: the spread evaluator, the
// paired-order executor, and the opportunity scanner that drives them.
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// Evaluate decides whether a cross-exchange arbitrage exists between two
// quotes for the same symbol. It returns (opportunity, true) only when the
// net profit fraction clears the threshold; in every other case, including
// invalid input, it returns (nil, false). It is a pure function.
//
// The buy leg is the exchange with the lower ask, the sell leg the exchange
// with the higher bid. Ties resolve to the lexicographically smaller exchange
// identifier, which makes the result independent of argument order. If both
// legs resolve to the same exchange there is no cross-exchange opportunity.
func Evaluate(a, b domain.Quote, fees domain.FeeModel, threshold, notional decimal.Decimal) (*domain.Opportunity, bool) {
	if a.Validate() != nil || b.Validate() != nil {
		return nil, false
	}
	if a.Symbol != b.Symbol || a.Exchange == b.Exchange {
		return nil, false
	}

	buy, sell := a, b
	if b.Ask.LessThan(a.Ask) || (b.Ask.Equal(a.Ask) && b.Exchange < a.Exchange) {
		buy = b
	}
	if a.Bid.GreaterThan(b.Bid) || (a.Bid.Equal(b.Bid) && a.Exchange < b.Exchange) {
		sell = a
	} else {
		sell = b
	}

	// A same-exchange "arbitrage" is meaningless and must never trade.
	if buy.Exchange == sell.Exchange {
		return nil, false
	}

	// Gross spread can be negative; that simply means no opportunity.
	gross := sell.Bid.Sub(buy.Ask).Div(buy.Ask)
	net := gross.Sub(fees.RoundTripFee)
	if !net.GreaterThan(threshold) {
		return nil, false
	}

	return &domain.Opportunity{
		Symbol:       a.Symbol,
		BuyExchange:  buy.Exchange,
		SellExchange: sell.Exchange,
		BuyPrice:     buy.Ask,
		SellPrice:    sell.Bid,
		GrossSpread:  gross,
		NetProfit:    net,
		Notional:     notional,
		DetectedAt:   time.Now().UTC(),
	}, true
}
