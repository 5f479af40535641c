package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Fill is the confirmation returned by an exchange after a market order
// executes.
type Fill struct {
	OrderID  string          `json:"order_id"`
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Side     OrderSide       `json:"side"`
	Price    decimal.Decimal `json:"price"`    // average execution price
	Quantity decimal.Decimal `json:"quantity"` // base-asset quantity
	FilledAt time.Time       `json:"filled_at"`
}
