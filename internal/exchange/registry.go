// Package exchange routes quote, order, and balance calls to the connector
// for a given exchange identifier.
package exchange

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// Connector is what each per-exchange client implements. Connectors take the
// symbol directly because they already know which exchange they are.
type Connector interface {
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	SubmitMarketOrder(ctx context.Context, creds domain.Credential, symbol string, side domain.OrderSide, quantity decimal.Decimal) (domain.Fill, error)
	GetBalance(ctx context.Context, creds domain.Credential, asset string) (decimal.Decimal, error)
}

// Registry implements domain.QuoteSource, domain.OrderSink, and
// domain.BalanceSource by dispatching on the exchange identifier. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates a Registry over the given connectors, keyed by
// exchange identifier.
func NewRegistry(connectors map[string]Connector) *Registry {
	m := make(map[string]Connector, len(connectors))
	for name, c := range connectors {
		m[name] = c
	}
	return &Registry{connectors: m}
}

// Names returns the registered exchange identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) connector(exchange string) (Connector, error) {
	c, ok := r.connectors[exchange]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown exchange %q: %w", exchange, domain.ErrNotFound)
	}
	return c, nil
}

// GetQuote fetches the current best bid/ask from the named exchange.
func (r *Registry) GetQuote(ctx context.Context, exchange, symbol string) (domain.Quote, error) {
	c, err := r.connector(exchange)
	if err != nil {
		return domain.Quote{}, err
	}
	return c.GetQuote(ctx, symbol)
}

// SubmitMarketOrder places a market order on the exchange named in creds.
func (r *Registry) SubmitMarketOrder(ctx context.Context, creds domain.Credential, symbol string, side domain.OrderSide, quantity decimal.Decimal) (domain.Fill, error) {
	c, err := r.connector(creds.Exchange)
	if err != nil {
		return domain.Fill{}, err
	}
	return c.SubmitMarketOrder(ctx, creds, symbol, side, quantity)
}

// GetBalance reports the free balance of one asset on the exchange named in
// creds.
func (r *Registry) GetBalance(ctx context.Context, creds domain.Credential, asset string) (decimal.Decimal, error) {
	c, err := r.connector(creds.Exchange)
	if err != nil {
		return decimal.Zero, err
	}
	return c.GetBalance(ctx, creds, asset)
}

var (
	_ domain.QuoteSource   = (*Registry)(nil)
	_ domain.OrderSink     = (*Registry)(nil)
	_ domain.BalanceSource = (*Registry)(nil)
)
