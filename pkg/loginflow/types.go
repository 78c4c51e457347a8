package loginflow

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-signin/pkg/errors"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
)

// Error type constants
const (
	ErrorTypeNoSuchUser         = "no_such_user"
	ErrorTypeInvalidCredentials = "invalid_credentials"
	ErrorTypeAccountLocked      = "account_locked"
	ErrorTypeInviteMismatch     = "invite_mismatch"
	ErrorTypeFederationRequired = "federation_required"
	ErrorTypeFederationDisabled = "federation_disabled"
	ErrorTypeAssertionRejected  = "assertion_rejected"
	ErrorTypeSignInRefused      = "sign_in_refused"
	ErrorTypeNoPendingChallenge = "no_pending_challenge"
	ErrorTypeCodeRejected       = "code_rejected"
	ErrorTypeCodeConsumed       = "code_consumption_failure"
	ErrorTypeInternalError      = "internal_error"
)

// Decision is the terminal state of one sign-in attempt
type Decision string

const (
	DecisionGranted              Decision = "granted"
	DecisionSecondFactorPending  Decision = "second_factor_pending"
	DecisionForcedReset          Decision = "forced_reset"
	DecisionVerificationRequired Decision = "verification_required"
	DecisionAlreadyAuthenticated Decision = "already_authenticated"
	DecisionRejected             Decision = "rejected"
)

// PendingChallenge records that a second-factor code was sent and not yet verified
type PendingChallenge struct {
	UserID                     uuid.UUID     `json:"user_id"`
	Channel                    twofa.Channel `json:"channel"`
	RequiresEmailLoginOverride bool          `json:"requires_email_login_override,omitempty"`
	IssuedAt                   time.Time     `json:"issued_at"`
}

// AuthenticatedSession is the result of a completed sign-in
type AuthenticatedSession struct {
	UserID        uuid.UUID `json:"user_id"`
	PlatformAdmin bool      `json:"platform_admin,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AttemptContext is the per-visitor state carried between requests. The
// flow takes it as input and returns the updated copy; the caller persists it.
type AttemptContext struct {
	PendingInvite     *signup.InviteToken   `json:"pending_invite,omitempty"`
	ResetEmailAddress string                `json:"reset_email_address,omitempty"`
	PendingChallenge  *PendingChallenge     `json:"pending_challenge,omitempty"`
	Session           *AuthenticatedSession `json:"session,omitempty"`
}

// Request contains the credentials submitted on the sign-in form
type Request struct {
	EmailAddress string
	Password     string
	IPAddress    string
	UserAgent    string
}

func (r Request) loginContext() login.LoginContext {
	return login.LoginContext{IPAddress: r.IPAddress, UserAgent: r.UserAgent}
}

// Result contains the result of a login flow operation
type Result struct {
	Decision Decision
	Context  AttemptContext
	// Account is set once the attempt has been tied to an account
	Account *login.Account
	Error   *Error
}

// Error represents structured errors from the login flow
type Error struct {
	Type    string
	Code    apperrors.ErrorCode
	Message string
	Data    map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus is the status a handler should answer with
func (e *Error) HTTPStatus() int {
	return apperrors.MapErrorCodeToHTTPStatus(e.Code)
}

func newError(errorType string, coded *apperrors.Error) *Error {
	return &Error{
		Type:    errorType,
		Code:    coded.Code,
		Message: coded.Message,
		Data:    coded.Details,
	}
}

// internalError keeps the cause's code (store outage, timeout, delivery
// failure) for the status and logs; the message stays generic
func internalError(cause error) *Error {
	return newError(ErrorTypeInternalError, apperrors.Internal(cause, "Sign-in failed. Please try again."))
}
