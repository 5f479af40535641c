package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account holder identified by email.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Credential holds one user's API credentials for one exchange. APISecret is
// plaintext in memory only; stores encrypt it at rest.
type Credential struct {
	UserID    string
	Exchange  string
	APIKey    string
	APISecret string
	UpdatedAt time.Time
}

// TradePreference holds a user's trading settings. Created with defaults on
// first access, mutated only by explicit user action, read once per scan
// cycle. A non-positive NotionalAmount disables execution regardless of
// AutoTradeEnabled.
type TradePreference struct {
	UserID           string          `json:"user_id"`
	NotionalAmount   decimal.Decimal `json:"notional_amount"`
	AutoTradeEnabled bool            `json:"auto_trade_enabled"`
	ProfitThreshold  decimal.Decimal `json:"profit_threshold"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DefaultPreference returns the safe starting preference for a new user:
// nothing at risk, trading off, threshold 0.1%.
func DefaultPreference(userID string) TradePreference {
	return TradePreference{
		UserID:           userID,
		NotionalAmount:   decimal.Zero,
		AutoTradeEnabled: false,
		ProfitThreshold:  decimal.NewFromFloat(0.001),
	}
}

// Tradable reports whether this preference permits order execution.
func (p TradePreference) Tradable() bool {
	return p.AutoTradeEnabled && p.NotionalAmount.IsPositive()
}
