package login

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxFailedLoginCount is used when neither the store nor the
// provision request sets a threshold
const DefaultMaxFailedLoginCount = 10

// StoreOption configures a UserStore implementation
type StoreOption func(*storeOptions)

type storeOptions struct {
	hasher          PasswordHasher
	maxFailedLogins int
	now             func() time.Time
}

func defaultStoreOptions() storeOptions {
	return storeOptions{
		hasher:          NewBcryptHasher(),
		maxFailedLogins: DefaultMaxFailedLoginCount,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithPasswordHasher sets the hasher used by VerifyPassword
func WithPasswordHasher(hasher PasswordHasher) StoreOption {
	return func(o *storeOptions) {
		o.hasher = hasher
	}
}

// WithMaxFailedLoginCount sets the threshold given to newly provisioned accounts
func WithMaxFailedLoginCount(n int) StoreOption {
	return func(o *storeOptions) {
		o.maxFailedLogins = n
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// InMemoryUserStore implements UserStore using in-memory storage
type InMemoryUserStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
	byEmail  map[string]uuid.UUID // normalized email -> account ID
	opts     storeOptions
}

// NewInMemoryUserStore creates a new in-memory user store
func NewInMemoryUserStore(opts ...StoreOption) *InMemoryUserStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &InMemoryUserStore{
		accounts: make(map[uuid.UUID]Account),
		byEmail:  make(map[string]uuid.UUID),
		opts:     o,
	}
}

// LookupByEmail implements UserStore
func (s *InMemoryUserStore) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	account := s.accounts[id]
	return &account, nil
}

// GetByID implements UserStore
func (s *InMemoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

// VerifyPassword implements UserStore
func (s *InMemoryUserStore) VerifyPassword(ctx context.Context, account Account, password string, loginCtx LoginContext) (bool, error) {
	s.mu.RLock()
	stored, ok := s.accounts[account.ID]
	s.mu.RUnlock()
	if !ok {
		return false, ErrAccountNotFound
	}

	valid, err := s.opts.hasher.Verify(password, stored.PasswordHash)
	if err != nil {
		return false, err
	}
	slog.Debug("Password verified", "user_id", account.ID, "valid", valid, "ip", loginCtx.IPAddress, "user_agent", loginCtx.UserAgent)
	return valid, nil
}

// RecordSignInSuccess implements UserStore
func (s *InMemoryUserStore) RecordSignInSuccess(ctx context.Context, account Account) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok || stored.IsLocked() {
		return false, nil
	}
	now := s.opts.now()
	stored.FailedLoginCount = 0
	stored.LoggedInAt = &now
	stored.UpdatedAt = now
	s.accounts[stored.ID] = stored
	return true, nil
}

// Provision implements UserStore
func (s *InMemoryUserStore) Provision(ctx context.Context, params ProvisionParams) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(params.EmailAddress)
	if _, exists := s.byEmail[key]; exists {
		return Account{}, ErrAccountExists
	}

	account := newAccount(params, s.opts)
	s.accounts[account.ID] = account
	s.byEmail[key] = account.ID
	return account, nil
}

// Apply implements UserStore
func (s *InMemoryUserStore) Apply(ctx context.Context, id uuid.UUID, cmd Command) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if err := applyCommand(&account, cmd, s.opts.now()); err != nil {
		return Account{}, err
	}
	s.accounts[id] = account
	return account, nil
}

func newAccount(params ProvisionParams, o storeOptions) Account {
	now := o.now()
	account := Account{
		ID:                  uuid.New(),
		EmailAddress:        params.EmailAddress,
		Name:                params.DisplayName,
		MobileNumber:        params.MobileNumber,
		PasswordHash:        params.PasswordHash,
		PasswordExpired:     params.PasswordExpired,
		State:               params.State,
		MaxFailedLoginCount: params.MaxFailedLoginCount,
		MfaPreference:       params.MfaPreference,
		RequiresEmailLogin:  params.RequiresEmailLogin,
		PlatformAdmin:       params.PlatformAdmin,
		AuthType:            params.AuthType,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if account.State == "" {
		account.State = StateActive
	}
	if account.MaxFailedLoginCount == 0 {
		account.MaxFailedLoginCount = o.maxFailedLogins
	}
	if account.MfaPreference == "" {
		account.MfaPreference = MfaNone
	}
	if account.AuthType == "" {
		account.AuthType = AuthTypeEmail
	}
	return account
}
