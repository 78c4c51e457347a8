package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `
	id, email_address, name, mobile_number, password_hash, password_expired,
	state, failed_login_count, max_failed_login_count, mfa_preference,
	requires_email_login, platform_admin, auth_type, logged_in_at,
	created_at, updated_at`

// PostgresUserStore implements UserStore using PostgreSQL. Every command is a
// single UPDATE statement so concurrent attempts serialize on the row lock.
type PostgresUserStore struct {
	pool *pgxpool.Pool
	opts storeOptions
}

// NewPostgresUserStore creates a new PostgreSQL user store
func NewPostgresUserStore(pool *pgxpool.Pool, opts ...StoreOption) *PostgresUserStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostgresUserStore{
		pool: pool,
		opts: o,
	}
}

// LookupByEmail implements UserStore
func (s *PostgresUserStore) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE lower(email_address) = $1`

	account, err := scanAccount(s.pool.QueryRow(ctx, query, NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}
	return &account, nil
}

// GetByID implements UserStore
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// VerifyPassword implements UserStore
func (s *PostgresUserStore) VerifyPassword(ctx context.Context, account Account, password string, loginCtx LoginContext) (bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, account.ID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrAccountNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load password hash: %w", err)
	}

	valid, err := s.opts.hasher.Verify(password, hash)
	if err != nil {
		return false, err
	}
	slog.Debug("Password verified", "user_id", account.ID, "valid", valid, "ip", loginCtx.IPAddress, "user_agent", loginCtx.UserAgent)
	return valid, nil
}

// RecordSignInSuccess implements UserStore
func (s *PostgresUserStore) RecordSignInSuccess(ctx context.Context, account Account) (bool, error) {
	query := `
		UPDATE accounts
		SET failed_login_count = 0, logged_in_at = $2, updated_at = $2
		WHERE id = $1 AND state <> 'locked'
	`
	tag, err := s.pool.Exec(ctx, query, account.ID, s.opts.now())
	if err != nil {
		return false, fmt.Errorf("failed to record sign-in: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Provision implements UserStore
func (s *PostgresUserStore) Provision(ctx context.Context, params ProvisionParams) (Account, error) {
	a := newAccount(params, s.opts)
	query := `
		INSERT INTO accounts (
			id, email_address, name, mobile_number, password_hash, password_expired,
			state, failed_login_count, max_failed_login_count, mfa_preference,
			requires_email_login, platform_admin, auth_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $11, $12, $13, $13)
		RETURNING` + accountColumns

	account, err := scanAccount(s.pool.QueryRow(ctx, query,
		a.ID,
		a.EmailAddress,
		a.Name,
		a.MobileNumber,
		a.PasswordHash,
		a.PasswordExpired,
		string(a.State),
		a.MaxFailedLoginCount,
		string(a.MfaPreference),
		a.RequiresEmailLogin,
		a.PlatformAdmin,
		string(a.AuthType),
		a.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrAccountExists
		}
		return Account{}, fmt.Errorf("failed to provision account: %w", err)
	}
	return account, nil
}

// Apply implements UserStore
func (s *PostgresUserStore) Apply(ctx context.Context, id uuid.UUID, cmd Command) (Account, error) {
	var set string
	switch cmd {
	case IncrementFailure:
		set = `failed_login_count = failed_login_count + 1,
			state = CASE WHEN failed_login_count + 1 >= max_failed_login_count THEN 'locked' ELSE state END`
	case ResetFailure:
		set = `failed_login_count = 0`
	case Lock:
		set = `state = 'locked'`
	case Unlock:
		set = `state = 'active', failed_login_count = 0`
	case Activate:
		set = `state = CASE WHEN state = 'pending' THEN 'active' ELSE state END`
	default:
		return Account{}, ErrUnknownCommand
	}

	query := `UPDATE accounts SET ` + set + `, updated_at = $2 WHERE id = $1 RETURNING` + accountColumns
	account, err := scanAccount(s.pool.QueryRow(ctx, query, id, s.opts.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to apply %s: %w", cmd, err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var state, mfa, authType string
	err := row.Scan(
		&a.ID,
		&a.EmailAddress,
		&a.Name,
		&a.MobileNumber,
		&a.PasswordHash,
		&a.PasswordExpired,
		&state,
		&a.FailedLoginCount,
		&a.MaxFailedLoginCount,
		&mfa,
		&a.RequiresEmailLogin,
		&a.PlatformAdmin,
		&authType,
		&a.LoggedInAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	a.State = AccountState(state)
	a.MfaPreference = MfaPreference(mfa)
	a.AuthType = AuthType(authType)
	return a, nil
}
