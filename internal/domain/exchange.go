package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteSource returns the current best bid/ask for a symbol on one exchange.
// Quotes require no credentials (public ticker endpoints).
type QuoteSource interface {
	GetQuote(ctx context.Context, exchange, symbol string) (Quote, error)
}

// OrderSink submits a market order on one exchange with the given user
// credentials and returns the fill confirmation. Quantity is the base-asset
// amount for sells; for buys implementations convert from the quote-currency
// notional at the prevailing price when the venue requires it.
type OrderSink interface {
	SubmitMarketOrder(ctx context.Context, creds Credential, symbol string, side OrderSide, quantity decimal.Decimal) (Fill, error)
}

// BalanceSource reports the free balance of one asset on one exchange.
type BalanceSource interface {
	GetBalance(ctx context.Context, creds Credential, asset string) (decimal.Decimal, error)
}
