package signup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inviteColumns = `id, email_address, invited_by, accepted_by, accepted_at, created_at`

// PostgresInviteStore implements InviteStore against the invites table
type PostgresInviteStore struct {
	pool *pgxpool.Pool
}

func NewPostgresInviteStore(pool *pgxpool.Pool) *PostgresInviteStore {
	return &PostgresInviteStore{pool: pool}
}

// Create implements InviteStore
func (s *PostgresInviteStore) Create(ctx context.Context, email string, invitedBy *uuid.UUID) (Invite, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO invites (id, email_address, invited_by)
		VALUES ($1, $2, $3)
		RETURNING `+inviteColumns,
		uuid.New(), email, invitedBy)
	invite, err := scanInvite(row)
	if err != nil {
		return Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return invite, nil
}

// Get implements InviteStore
func (s *PostgresInviteStore) Get(ctx context.Context, id uuid.UUID) (Invite, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = $1`, id)
	invite, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, ErrInviteNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("get invite: %w", err)
	}
	return invite, nil
}

// MarkAccepted implements InviteStore
func (s *PostgresInviteStore) MarkAccepted(ctx context.Context, id uuid.UUID, userID uuid.UUID) (Invite, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE invites
		SET accepted_by = COALESCE(accepted_by, $2),
		    accepted_at = COALESCE(accepted_at, now())
		WHERE id = $1
		RETURNING `+inviteColumns,
		id, userID)
	invite, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, ErrInviteNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("accept invite: %w", err)
	}
	return invite, nil
}

func scanInvite(row pgx.Row) (Invite, error) {
	var i Invite
	err := row.Scan(&i.ID, &i.EmailAddress, &i.InvitedBy, &i.AcceptedBy, &i.AcceptedAt, &i.CreatedAt)
	return i, err
}
