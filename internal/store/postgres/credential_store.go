package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmcalloway/spreadbot/internal/crypto"
	"github.com/tmcalloway/spreadbot/internal/domain"
)

// CredentialStore implements domain.CredentialStore using PostgreSQL. API
// secrets are sealed with the configured secret box before they are written
// and opened on read, so the database only ever sees ciphertext.
type CredentialStore struct {
	pool *pgxpool.Pool
	box  *crypto.SecretBox
}

// NewCredentialStore creates a CredentialStore backed by the given connection
// pool and secret box.
func NewCredentialStore(pool *pgxpool.Pool, box *crypto.SecretBox) *CredentialStore {
	return &CredentialStore{pool: pool, box: box}
}

// Upsert inserts or replaces a user's credentials for one exchange.
func (s *CredentialStore) Upsert(ctx context.Context, c domain.Credential) error {
	sealed, err := s.box.Seal(c.APISecret)
	if err != nil {
		return fmt.Errorf("postgres: seal credential secret: %w", err)
	}

	const query = `
		INSERT INTO exchange_credentials (user_id, exchange, api_key, api_secret, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, exchange)
		DO UPDATE SET api_key = EXCLUDED.api_key,
		              api_secret = EXCLUDED.api_secret,
		              updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, c.UserID, c.Exchange, c.APIKey, sealed); err != nil {
		return fmt.Errorf("postgres: upsert credential %s/%s: %w", c.UserID, c.Exchange, err)
	}
	return nil
}

func (s *CredentialStore) scanCredential(row pgx.Row) (domain.Credential, error) {
	var c domain.Credential
	var sealed string
	if err := row.Scan(&c.UserID, &c.Exchange, &c.APIKey, &sealed, &c.UpdatedAt); err != nil {
		return domain.Credential{}, err
	}

	secret, err := s.box.Open(sealed)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("open credential secret: %w", err)
	}
	c.APISecret = secret
	return c, nil
}

const credentialSelectCols = `user_id, exchange, api_key, api_secret, updated_at`

// Get retrieves one user's credentials for one exchange, returning
// domain.ErrNoCredentials when none are stored.
func (s *CredentialStore) Get(ctx context.Context, userID, exchange string) (domain.Credential, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+credentialSelectCols+`
		 FROM exchange_credentials WHERE user_id = $1 AND exchange = $2`,
		userID, exchange)

	c, err := s.scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credential{}, domain.ErrNoCredentials
		}
		return domain.Credential{}, fmt.Errorf("postgres: get credential %s/%s: %w", userID, exchange, err)
	}
	return c, nil
}

// ListByUser returns all credentials stored for a user.
func (s *CredentialStore) ListByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+credentialSelectCols+`
		 FROM exchange_credentials WHERE user_id = $1 ORDER BY exchange`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list credentials %s: %w", userID, err)
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		c, err := s.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list credentials %s: %w", userID, err)
	}
	return creds, nil
}

var _ domain.CredentialStore = (*CredentialStore)(nil)
