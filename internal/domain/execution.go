package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionOutcome classifies how a paired-order execution ended.
type ExecutionOutcome string

const (
	// ExecSuccess: both legs filled; the spread was captured.
	ExecSuccess ExecutionOutcome = "success"
	// ExecBuyFailed: the buy leg failed; the system holds no position.
	ExecBuyFailed ExecutionOutcome = "buy_failed"
	// ExecSellFailedRecovered: the sell leg failed after all retries but the
	// reversal sell on the buy exchange flattened the position. Loss is
	// bounded to the reversal's realized loss.
	ExecSellFailedRecovered ExecutionOutcome = "sell_failed_recovered"
	// ExecSellFailedExposed: the sell leg and the reversal both failed. The
	// position is left open and requires operator attention.
	ExecSellFailedExposed ExecutionOutcome = "sell_failed_exposed"
)

// Fatal reports whether the outcome left residual exposure that a human must
// resolve.
func (o ExecutionOutcome) Fatal() bool {
	return o == ExecSellFailedExposed
}

// ExecutionResult records the terminal state of one paired-order execution.
// It is the most consequential record in the system: it says whether the
// two-legged trade completed in effect atomically or left an open position.
type ExecutionResult struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Symbol       string           `json:"symbol"`
	Outcome      ExecutionOutcome `json:"outcome"`
	BuyExchange  string           `json:"buy_exchange"`
	SellExchange string           `json:"sell_exchange"`
	BuyPrice     decimal.Decimal  `json:"buy_price"`
	SellPrice    decimal.Decimal  `json:"sell_price"`
	Quantity     decimal.Decimal  `json:"quantity"`
	BuyFill      *Fill            `json:"buy_fill,omitempty"`
	SellFill     *Fill            `json:"sell_fill,omitempty"`
	ReversalFill *Fill            `json:"reversal_fill,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
