package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time best bid/ask snapshot from one exchange. Quotes
// are produced fresh per evaluation cycle and never mutated.
type Quote struct {
	Exchange   string
	Symbol     string
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	ObservedAt time.Time
}

// Validate reports whether the quote is usable: both sides present and
// positive, and bid not above ask. Anything else is rejected before use.
func (q Quote) Validate() error {
	if q.Exchange == "" || q.Symbol == "" {
		return ErrInvalidQuote
	}
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
		return ErrInvalidQuote
	}
	if q.Bid.GreaterThan(q.Ask) {
		return ErrInvalidQuote
	}
	return nil
}

// FeeModel is the fraction of notional lost to trading fees across one buy
// plus one sell. It is supplied per exchange-pair from configuration, not
// derived.
type FeeModel struct {
	RoundTripFee decimal.Decimal
}
