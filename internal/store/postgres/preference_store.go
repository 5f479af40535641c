package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// PreferenceStore implements domain.PreferenceStore using PostgreSQL.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore creates a PreferenceStore backed by the given pool.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

const preferenceSelectCols = `user_id, notional_amount, auto_trade_enabled, profit_threshold, updated_at`

func scanPreference(row pgx.Row) (domain.TradePreference, error) {
	var p domain.TradePreference
	err := row.Scan(&p.UserID, &p.NotionalAmount, &p.AutoTradeEnabled, &p.ProfitThreshold, &p.UpdatedAt)
	return p, err
}

// Get retrieves a user's trade preference. A user who has never saved one
// gets the safe default rather than an error.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (domain.TradePreference, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+preferenceSelectCols+` FROM trade_preferences WHERE user_id = $1`, userID)

	p, err := scanPreference(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultPreference(userID), nil
		}
		return domain.TradePreference{}, fmt.Errorf("postgres: get preference %s: %w", userID, err)
	}
	return p, nil
}

// Upsert inserts or replaces a user's trade preference.
func (s *PreferenceStore) Upsert(ctx context.Context, p domain.TradePreference) error {
	const query = `
		INSERT INTO trade_preferences (user_id, notional_amount, auto_trade_enabled, profit_threshold, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET notional_amount = EXCLUDED.notional_amount,
		              auto_trade_enabled = EXCLUDED.auto_trade_enabled,
		              profit_threshold = EXCLUDED.profit_threshold,
		              updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query,
		p.UserID, p.NotionalAmount, p.AutoTradeEnabled, p.ProfitThreshold,
	); err != nil {
		return fmt.Errorf("postgres: upsert preference %s: %w", p.UserID, err)
	}
	return nil
}

// ListTradable returns every preference with auto-trading enabled and a
// positive notional. The scanner uses this as its per-cycle user set; users
// without stored preferences are excluded because the default is not
// tradable.
func (s *PreferenceStore) ListTradable(ctx context.Context) ([]domain.TradePreference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+preferenceSelectCols+`
		 FROM trade_preferences
		 WHERE auto_trade_enabled AND notional_amount > 0
		 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tradable preferences: %w", err)
	}
	defer rows.Close()

	var prefs []domain.TradePreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tradable preferences: %w", err)
	}
	return prefs, nil
}

var _ domain.PreferenceStore = (*PreferenceStore)(nil)
