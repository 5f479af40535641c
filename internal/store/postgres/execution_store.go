package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. Fills are
// stored as JSONB so a leg that never happened is simply NULL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

func marshalFill(f *domain.Fill) (any, error) {
	if f == nil {
		return nil, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func unmarshalFill(raw []byte) (*domain.Fill, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var f domain.Fill
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts an execution record.
func (s *ExecutionStore) Create(ctx context.Context, r domain.ExecutionResult) error {
	buyFill, err := marshalFill(r.BuyFill)
	if err != nil {
		return fmt.Errorf("postgres: marshal buy fill: %w", err)
	}
	sellFill, err := marshalFill(r.SellFill)
	if err != nil {
		return fmt.Errorf("postgres: marshal sell fill: %w", err)
	}
	reversalFill, err := marshalFill(r.ReversalFill)
	if err != nil {
		return fmt.Errorf("postgres: marshal reversal fill: %w", err)
	}

	const query = `
		INSERT INTO executions (
			id, user_id, symbol, outcome,
			buy_exchange, sell_exchange,
			buy_price, sell_price, quantity,
			buy_fill, sell_fill, reversal_fill,
			error, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14
		)`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.UserID, r.Symbol, string(r.Outcome),
		r.BuyExchange, r.SellExchange,
		r.BuyPrice, r.SellPrice, r.Quantity,
		buyFill, sellFill, reversalFill,
		r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create execution %s: %w", r.ID, err)
	}
	return nil
}

const executionSelectCols = `id, user_id, symbol, outcome,
	buy_exchange, sell_exchange,
	buy_price, sell_price, quantity,
	buy_fill, sell_fill, reversal_fill,
	error, created_at`

func scanExecution(row pgx.Row) (domain.ExecutionResult, error) {
	var r domain.ExecutionResult
	var outcome string
	var buyFill, sellFill, reversalFill []byte

	err := row.Scan(
		&r.ID, &r.UserID, &r.Symbol, &outcome,
		&r.BuyExchange, &r.SellExchange,
		&r.BuyPrice, &r.SellPrice, &r.Quantity,
		&buyFill, &sellFill, &reversalFill,
		&r.Error, &r.CreatedAt,
	)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	r.Outcome = domain.ExecutionOutcome(outcome)

	if r.BuyFill, err = unmarshalFill(buyFill); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("unmarshal buy fill: %w", err)
	}
	if r.SellFill, err = unmarshalFill(sellFill); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("unmarshal sell fill: %w", err)
	}
	if r.ReversalFill, err = unmarshalFill(reversalFill); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("unmarshal reversal fill: %w", err)
	}
	return r, nil
}

// ListByUser returns a user's execution history, newest first.
func (s *ExecutionStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+`
		 FROM executions WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions %s: %w", userID, err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions %s: %w", userID, err)
	}
	return results, nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
