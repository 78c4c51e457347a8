package login

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrUnknownCommand  = errors.New("unknown account command")
)

// UserStore persists accounts and applies account commands atomically.
// Implementations must serialize the read-modify-write of a single account.
type UserStore interface {
	// LookupByEmail returns nil, nil when no account matches
	LookupByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID returns ErrAccountNotFound when no account matches
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)

	// VerifyPassword checks the password against the stored hash.
	// The login context is for audit only.
	VerifyPassword(ctx context.Context, account Account, password string, loginCtx LoginContext) (bool, error)

	// RecordSignInSuccess resets the failure count and stamps the sign-in time.
	// It returns false when the account can no longer sign in.
	RecordSignInSuccess(ctx context.Context, account Account) (bool, error)

	// Provision creates an account
	Provision(ctx context.Context, params ProvisionParams) (Account, error)

	// Apply runs a single command atomically and returns the updated account
	Apply(ctx context.Context, id uuid.UUID, cmd Command) (Account, error)
}
