package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a decided cross-exchange arbitrage: buy where asks are
// cheapest, sell where bids are highest. GrossSpread and NetProfit may be
// negative; Actionable is what decides whether to trade. Opportunities are
// transient values, never persisted.
type Opportunity struct {
	Symbol       string          `json:"symbol"`
	BuyExchange  string          `json:"buy_exchange"`
	SellExchange string          `json:"sell_exchange"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	GrossSpread  decimal.Decimal `json:"gross_spread"` // fraction of buy price
	NetProfit    decimal.Decimal `json:"net_profit"`   // gross spread minus round-trip fee
	Notional     decimal.Decimal `json:"notional"`     // quote-currency amount to deploy
	DetectedAt   time.Time       `json:"detected_at"`
}

// Actionable reports whether the net profit clears the user's threshold.
func (o Opportunity) Actionable(threshold decimal.Decimal) bool {
	return o.NetProfit.GreaterThan(threshold)
}
