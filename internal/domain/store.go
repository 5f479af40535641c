package domain

import (
	"context"
	"time"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// CredentialStore persists per-exchange API credentials. Implementations are
// responsible for encrypting secrets at rest.
type CredentialStore interface {
	Upsert(ctx context.Context, c Credential) error
	Get(ctx context.Context, userID, exchange string) (Credential, error)
	ListByUser(ctx context.Context, userID string) ([]Credential, error)
}

// PreferenceStore persists trade preferences. Get returns the default
// preference (not ErrNotFound) when the user has never saved one.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (TradePreference, error)
	Upsert(ctx context.Context, p TradePreference) error
	ListTradable(ctx context.Context) ([]TradePreference, error)
}

// ExecutionStore persists paired-order execution results.
type ExecutionStore interface {
	Create(ctx context.Context, r ExecutionResult) error
	ListByUser(ctx context.Context, userID string, limit int) ([]ExecutionResult, error)
}

// QuoteCache holds short-lived exchange quotes so repeated evaluations within
// the TTL do not hit the exchange REST APIs.
type QuoteCache interface {
	Set(ctx context.Context, q Quote, ttl time.Duration) error
	Get(ctx context.Context, exchange, symbol string) (Quote, error)
}

// OpportunityCache holds the latest computed opportunity per user for the
// HTTP query surface. Storing a nil opportunity records "none this cycle".
type OpportunityCache interface {
	Set(ctx context.Context, userID string, opp *Opportunity, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*Opportunity, error)
}

// LockManager provides distributed locks so a restarted scanner never runs
// twice against the same user set.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}

// RateLimiter throttles outbound exchange calls with a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}
