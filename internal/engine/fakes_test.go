package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// orderCall records one SubmitMarketOrder invocation.
type orderCall struct {
	Exchange string
	Side     domain.OrderSide
	Quantity decimal.Decimal
}

// scriptedSink returns canned responses per (exchange, side) in call order.
type scriptedSink struct {
	mu      sync.Mutex
	calls   []orderCall
	outcome func(call orderCall, nth int) (domain.Fill, error)
	counts  map[string]int
}

func newScriptedSink(outcome func(call orderCall, nth int) (domain.Fill, error)) *scriptedSink {
	return &scriptedSink{outcome: outcome, counts: make(map[string]int)}
}

func (s *scriptedSink) SubmitMarketOrder(_ context.Context, creds domain.Credential, symbol string, side domain.OrderSide, quantity decimal.Decimal) (domain.Fill, error) {
	s.mu.Lock()
	call := orderCall{Exchange: creds.Exchange, Side: side, Quantity: quantity}
	s.calls = append(s.calls, call)
	key := creds.Exchange + "/" + string(side)
	nth := s.counts[key]
	s.counts[key] = nth + 1
	s.mu.Unlock()

	fill, err := s.outcome(call, nth)
	if err != nil {
		return domain.Fill{}, err
	}
	fill.Exchange = creds.Exchange
	fill.Symbol = symbol
	fill.Side = side
	if fill.Quantity.IsZero() {
		fill.Quantity = quantity
	}
	if fill.FilledAt.IsZero() {
		fill.FilledAt = time.Now()
	}
	return fill, nil
}

func (s *scriptedSink) callLog() []orderCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orderCall(nil), s.calls...)
}

// memExecutionStore records executions in memory.
type memExecutionStore struct {
	mu      sync.Mutex
	records []domain.ExecutionResult
	err     error
}

func (m *memExecutionStore) Create(_ context.Context, r domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memExecutionStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionResult
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memExecutionStore) all() []domain.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ExecutionResult(nil), m.records...)
}

// memAlerter records notifications and escalations.
type memAlerter struct {
	mu          sync.Mutex
	notified    []string
	escalations []string
}

func (m *memAlerter) Notify(_ context.Context, event, title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, event+": "+title)
	return nil
}

func (m *memAlerter) Escalate(_ context.Context, _, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations = append(m.escalations, message)
	return nil
}

func (m *memAlerter) escalated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.escalations...)
}

// memPrefStore serves a fixed tradable set.
type memPrefStore struct {
	prefs []domain.TradePreference
}

func (m *memPrefStore) Get(_ context.Context, userID string) (domain.TradePreference, error) {
	for _, p := range m.prefs {
		if p.UserID == userID {
			return p, nil
		}
	}
	return domain.DefaultPreference(userID), nil
}

func (m *memPrefStore) Upsert(_ context.Context, p domain.TradePreference) error {
	m.prefs = append(m.prefs, p)
	return nil
}

func (m *memPrefStore) ListTradable(_ context.Context) ([]domain.TradePreference, error) {
	var out []domain.TradePreference
	for _, p := range m.prefs {
		if p.Tradable() {
			out = append(out, p)
		}
	}
	return out, nil
}

// memCredStore holds credentials keyed by user and exchange.
type memCredStore struct {
	creds map[string]domain.Credential // userID/exchange
}

func credKey(userID, exchange string) string { return userID + "/" + exchange }

func (m *memCredStore) Upsert(_ context.Context, c domain.Credential) error {
	if m.creds == nil {
		m.creds = make(map[string]domain.Credential)
	}
	m.creds[credKey(c.UserID, c.Exchange)] = c
	return nil
}

func (m *memCredStore) Get(_ context.Context, userID, exchange string) (domain.Credential, error) {
	c, ok := m.creds[credKey(userID, exchange)]
	if !ok {
		return domain.Credential{}, domain.ErrNoCredentials
	}
	return c, nil
}

func (m *memCredStore) ListByUser(_ context.Context, userID string) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range m.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// memLock is a single-process LockManager.
type memLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
	}, nil
}

func (m *memLock) Refresh(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[key] {
		return domain.ErrLockHeld
	}
	return nil
}

// memOppCache records the latest published opportunity per user.
type memOppCache struct {
	mu     sync.Mutex
	latest map[string]*domain.Opportunity
	wrote  map[string]int
}

func (m *memOppCache) Set(_ context.Context, userID string, opp *domain.Opportunity, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		m.latest = make(map[string]*domain.Opportunity)
		m.wrote = make(map[string]int)
	}
	m.latest[userID] = opp
	m.wrote[userID]++
	return nil
}

func (m *memOppCache) Get(_ context.Context, userID string) (*domain.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.latest[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return opp, nil
}

func (m *memOppCache) writes(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrote[userID]
}

// flakyQuoteSource serves fixed quotes but fails specific users' exchanges by
// failing a configurable number of initial calls per exchange.
type flakyQuoteSource struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	fail   map[string]error
}

func (f *flakyQuoteSource) GetQuote(_ context.Context, exchange, symbol string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[exchange]; ok && err != nil {
		return domain.Quote{}, err
	}
	q, ok := f.quotes[exchange]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
	q.Symbol = symbol
	q.ObservedAt = time.Now()
	return q, nil
}
