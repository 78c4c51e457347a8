package externalprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-signin/pkg/login"
)

const DefaultExchangeTimeout = 10 * time.Second

type Option func(*Resolver)

// WithExchangeTimeout bounds the call to the identity provider
func WithExchangeTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// Resolver maps a federated assertion to a local account, provisioning one
// on first sight
type Resolver struct {
	client  FederatedIdentityClient
	users   login.UserStore
	timeout time.Duration
}

func NewResolver(client FederatedIdentityClient, users login.UserStore, opts ...Option) *Resolver {
	r := &Resolver{
		client:  client,
		users:   users,
		timeout: DefaultExchangeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the account for the assertion and whether it was created
// by this call. Exchange failures, timeouts and missing or unverified email
// claims all yield ErrAssertionRejected. Store failures are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, assertion Assertion) (login.Account, bool, error) {
	exchangeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	identity, err := r.client.Exchange(exchangeCtx, assertion)
	cancel()
	if err != nil {
		slog.Warn("Federated exchange failed", "err", err, "timeout", errors.Is(err, context.DeadlineExceeded))
		return login.Account{}, false, ErrAssertionRejected
	}
	if identity.Email == "" {
		slog.Warn("Federated identity has no email claim", "subject", identity.Subject)
		return login.Account{}, false, ErrAssertionRejected
	}
	if !identity.EmailVerified {
		slog.Warn("Federated identity email is not verified", "subject", identity.Subject, "email", identity.Email)
		return login.Account{}, false, ErrAssertionRejected
	}

	existing, err := r.users.LookupByEmail(ctx, identity.Email)
	if err != nil {
		return login.Account{}, false, fmt.Errorf("lookup federated account: %w", err)
	}
	if existing != nil {
		slog.Info("Existing account found for federated sign-in", "user_id", existing.ID)
		return *existing, false, nil
	}

	account, err := r.users.Provision(ctx, login.ProvisionParams{
		DisplayName:   DeriveDisplayName(identity.Email),
		EmailAddress:  identity.Email,
		AuthType:      login.AuthTypeFederated,
		MobileNumber:  nil,
		State:         login.StateActive,
		MfaPreference: login.MfaNone,
	})
	if errors.Is(err, login.ErrAccountExists) {
		// Another callback for the same email provisioned it first
		raced, lookupErr := r.users.LookupByEmail(ctx, identity.Email)
		if lookupErr != nil || raced == nil {
			return login.Account{}, false, fmt.Errorf("lookup raced federated account: %w", errors.Join(err, lookupErr))
		}
		return *raced, false, nil
	}
	if err != nil {
		return login.Account{}, false, fmt.Errorf("provision federated account: %w", err)
	}

	slog.Info("Provisioned account for federated sign-in", "user_id", account.ID, "email", account.EmailAddress)
	return account, true, nil
}
