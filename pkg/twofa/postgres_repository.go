package twofa

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCodeStore implements CodeStore using PostgreSQL
type PostgresCodeStore struct {
	pool *pgxpool.Pool
	opts storeOptions
}

// NewPostgresCodeStore creates a new PostgreSQL code store
func NewPostgresCodeStore(pool *pgxpool.Pool, opts ...StoreOption) *PostgresCodeStore {
	return &PostgresCodeStore{
		pool: pool,
		opts: buildStoreOptions(opts),
	}
}

// Issue implements CodeStore
func (s *PostgresCodeStore) Issue(ctx context.Context, userID uuid.UUID, channel Channel) (string, error) {
	if err := ValidateChannel(channel); err != nil {
		return "", err
	}

	now := s.opts.now()
	code, err := s.opts.generate(now)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO verification_codes (user_id, channel, code, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (user_id, channel) DO UPDATE
		SET code = EXCLUDED.code, issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at, consumed = false
	`
	if _, err := s.pool.Exec(ctx, query, userID, string(channel), code, now, now.Add(s.opts.ttl)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return code, nil
}

// ListActive implements CodeStore
func (s *PostgresCodeStore) ListActive(ctx context.Context, userID uuid.UUID) ([]VerificationCode, error) {
	query := `
		SELECT user_id, channel, code, issued_at, expires_at, consumed
		FROM verification_codes
		WHERE user_id = $1 AND consumed = false AND expires_at > $2
		ORDER BY channel
	`
	rows, err := s.pool.Query(ctx, query, userID, s.opts.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (VerificationCode, error) {
		var c VerificationCode
		var channel string
		err := row.Scan(&c.UserID, &channel, &c.Code, &c.IssuedAt, &c.ExpiresAt, &c.Consumed)
		c.Channel = Channel(channel)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return codes, nil
}

// Consume implements CodeStore
func (s *PostgresCodeStore) Consume(ctx context.Context, userID uuid.UUID, channel Channel, code string) (bool, error) {
	query := `
		UPDATE verification_codes SET consumed = true
		WHERE user_id = $1 AND channel = $2 AND consumed = false AND expires_at > $3
		  AND ($4::text = '' OR code = $4::text)
	`
	tag, err := s.pool.Exec(ctx, query, userID, string(channel), s.opts.now(), code)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}
