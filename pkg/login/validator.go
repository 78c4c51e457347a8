package login

import (
	"context"
	"fmt"
	"log/slog"
)

// OutcomeKind enumerates the results of a credential check
type OutcomeKind int

const (
	OutcomeNoSuchUser OutcomeKind = iota
	OutcomePasswordExpired
	OutcomeInvalidCredentials
	OutcomeLocked
	OutcomeValid
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoSuchUser:
		return "no_such_user"
	case OutcomePasswordExpired:
		return "password_expired"
	case OutcomeInvalidCredentials:
		return "invalid_credentials"
	case OutcomeLocked:
		return "locked"
	case OutcomeValid:
		return "valid"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of CredentialValidator.Validate. Account is set for
// PasswordExpired, Locked and Valid.
type Outcome struct {
	Kind    OutcomeKind
	Account *Account
}

// CredentialValidator resolves an email and password into an Outcome
type CredentialValidator struct {
	store UserStore
}

// NewCredentialValidator creates a validator over the given store
func NewCredentialValidator(store UserStore) *CredentialValidator {
	return &CredentialValidator{store: store}
}

// Validate checks the credentials. Password expiry is decided from the email
// lookup alone and consumes no failed attempt. A wrong password increments the
// failure count and the store locks the account once the threshold is reached.
// Store failures are returned as errors and never folded into an outcome.
func (v *CredentialValidator) Validate(ctx context.Context, email, password string, loginCtx LoginContext) (Outcome, error) {
	account, err := v.store.LookupByEmail(ctx, email)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup account: %w", err)
	}
	if account == nil {
		slog.Info("Sign-in for unknown email", "email", email, "ip", loginCtx.IPAddress)
		return Outcome{Kind: OutcomeNoSuchUser}, nil
	}

	if account.PasswordExpired {
		slog.Info("Sign-in with expired password", "user_id", account.ID)
		return Outcome{Kind: OutcomePasswordExpired, Account: account}, nil
	}

	if account.IsLocked() {
		slog.Info("Sign-in for locked account", "user_id", account.ID, "ip", loginCtx.IPAddress)
		return Outcome{Kind: OutcomeLocked, Account: account}, nil
	}

	valid, err := v.store.VerifyPassword(ctx, *account, password, loginCtx)
	if err != nil {
		return Outcome{}, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		updated, err := v.store.Apply(ctx, account.ID, IncrementFailure)
		if err != nil {
			return Outcome{}, fmt.Errorf("record failed attempt: %w", err)
		}
		slog.Info("Invalid password", "user_id", updated.ID, "failed_login_count", updated.FailedLoginCount,
			"max_failed_login_count", updated.MaxFailedLoginCount, "ip", loginCtx.IPAddress, "user_agent", loginCtx.UserAgent)
		if updated.IsLocked() {
			slog.Warn("Account locked", "user_id", updated.ID, "failed_login_count", updated.FailedLoginCount)
			return Outcome{Kind: OutcomeLocked, Account: &updated}, nil
		}
		return Outcome{Kind: OutcomeInvalidCredentials}, nil
	}

	return Outcome{Kind: OutcomeValid, Account: account}, nil
}
