package login

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountState is the lifecycle state of an account
type AccountState string

const (
	StatePending AccountState = "pending"
	StateActive  AccountState = "active"
	StateLocked  AccountState = "locked"
)

// MfaPreference is the second factor an account is challenged with
type MfaPreference string

const (
	MfaSms   MfaPreference = "sms"
	MfaEmail MfaPreference = "email"
	MfaNone  MfaPreference = "none"
)

// AuthType records how the account was registered
type AuthType string

const (
	AuthTypeEmail     AuthType = "email_auth"
	AuthTypeSms       AuthType = "sms_auth"
	AuthTypeFederated AuthType = "federated"
)

// Account is the sign-in view of a user record
type Account struct {
	ID                  uuid.UUID
	EmailAddress        string
	Name                string
	MobileNumber        *string
	PasswordHash        string
	PasswordExpired     bool
	State               AccountState
	FailedLoginCount    int
	MaxFailedLoginCount int
	MfaPreference       MfaPreference
	RequiresEmailLogin  bool
	PlatformAdmin       bool
	AuthType            AuthType
	LoggedInAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SmsAuth reports whether the account is challenged over SMS
func (a Account) SmsAuth() bool {
	return a.MfaPreference == MfaSms
}

// EmailAuth reports whether the account is challenged over email
func (a Account) EmailAuth() bool {
	return a.MfaPreference == MfaEmail
}

// IsLocked reports whether sign-in is refused until an explicit unlock
func (a Account) IsLocked() bool {
	return a.State == StateLocked
}

// IsPending reports whether the account has not completed verification
func (a Account) IsPending() bool {
	return a.State == StatePending
}

// HasUsablePassword is false for accounts provisioned without a local password
func (a Account) HasUsablePassword() bool {
	return a.PasswordHash != ""
}

// SameEmail compares two email addresses case-insensitively
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeEmail returns the lookup key for an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Command is an atomic account mutation applied by a UserStore
type Command string

const (
	// IncrementFailure adds one to the failure count and locks the account
	// when the count reaches MaxFailedLoginCount.
	IncrementFailure Command = "increment_failure"
	// ResetFailure clears the failure count.
	ResetFailure Command = "reset_failure"
	// Lock locks the account regardless of the failure count.
	Lock Command = "lock"
	// Unlock reactivates a locked account and clears the failure count.
	Unlock Command = "unlock"
	// Activate moves a pending account to active. Other states are unchanged.
	Activate Command = "activate"
)

// LoginContext carries client metadata for audit logging
type LoginContext struct {
	IPAddress string
	UserAgent string
}

// ProvisionParams describes a new account
type ProvisionParams struct {
	DisplayName         string
	EmailAddress        string
	AuthType            AuthType
	MobileNumber        *string
	PasswordHash        string
	PasswordExpired     bool
	State               AccountState
	MfaPreference       MfaPreference
	RequiresEmailLogin  bool
	PlatformAdmin       bool
	MaxFailedLoginCount int
}

// applyCommand mutates the account in place. It is shared by the stores that
// hold accounts in process memory and must run under the store lock.
func applyCommand(a *Account, cmd Command, now time.Time) error {
	switch cmd {
	case IncrementFailure:
		a.FailedLoginCount++
		if a.MaxFailedLoginCount > 0 && a.FailedLoginCount >= a.MaxFailedLoginCount {
			a.State = StateLocked
		}
	case ResetFailure:
		a.FailedLoginCount = 0
	case Lock:
		a.State = StateLocked
	case Unlock:
		a.State = StateActive
		a.FailedLoginCount = 0
	case Activate:
		if a.State == StatePending {
			a.State = StateActive
		}
	default:
		return ErrUnknownCommand
	}
	a.UpdatedAt = now
	return nil
}
