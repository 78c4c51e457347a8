package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes produced by the sign-in core
const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	// Credential errors
	ErrCodeNoSuchUser         ErrorCode = "NO_SUCH_USER"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodePasswordExpired    ErrorCode = "PASSWORD_EXPIRED"
	ErrCodeUserLocked         ErrorCode = "USER_LOCKED"
	ErrCodeUserPending        ErrorCode = "USER_PENDING"

	// Invite errors
	ErrCodeInviteMismatch ErrorCode = "INVITE_MISMATCH"

	// Federation errors
	ErrCodeAssertionRejected  ErrorCode = "ASSERTION_REJECTED"
	ErrCodeFederationRequired ErrorCode = "FEDERATION_REQUIRED"
	ErrCodeFederationDisabled ErrorCode = "FEDERATION_DISABLED"

	// Second factor errors
	ErrCodeCodeRejected           ErrorCode = "CODE_REJECTED"
	ErrCodeCodeConsumptionFailure ErrorCode = "CODE_CONSUMPTION_FAILURE"
	ErrCodeNoPendingChallenge     ErrorCode = "NO_PENDING_CHALLENGE"
	ErrCodeDeliveryFailed         ErrorCode = "DELIVERY_FAILED"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request. A locked account is reported as a bad request so the
	// response does not differ from a malformed form submission.
	case ErrCodeInvalidInput, ErrCodeUserLocked, ErrCodeFederationRequired,
		ErrCodeFederationDisabled, ErrCodeNoPendingChallenge:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeNoSuchUser, ErrCodeInvalidCredentials, ErrCodeAssertionRejected,
		ErrCodeCodeRejected, ErrCodeCodeConsumptionFailure:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeInviteMismatch:
		return http.StatusForbidden

	// 409 Conflict
	case ErrCodePasswordExpired, ErrCodeUserPending:
		return http.StatusConflict

	// 503 Service Unavailable
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable

	// 504 Gateway Timeout
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Constructors for the common sign-in failures

// NoSuchUser creates an error for an unknown email address
func NoSuchUser(email string) *Error {
	return New(ErrCodeNoSuchUser, "no account for email address").WithDetail("email", email)
}

// InvalidCredentials creates an error for a wrong password
func InvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid credentials")
}

// AccountLocked creates an error carrying the configured lock threshold
func AccountLocked(threshold int) *Error {
	return Newf(ErrCodeUserLocked,
		"Your account has been locked after %d sign-in attempts. Please email us at assistance+notification@cds-snc.ca",
		threshold).WithDetail("threshold", threshold)
}

// InviteMismatch creates an error for an invite accepted by a different account
func InviteMismatch() *Error {
	return New(ErrCodeInviteMismatch, "You cannot accept an invite for another person.")
}

// AssertionRejected creates an error that wraps provider detail for logging only
func AssertionRejected(err error) *Error {
	return Wrap(err, ErrCodeAssertionRejected, "federated sign-in failed")
}

// Internal wraps a store or transport failure. The code of a structured
// cause is kept; an expired deadline becomes ErrCodeTimeout.
func Internal(err error, message string) *Error {
	if err == nil {
		return New(ErrCodeInternal, message)
	}
	code := GetCode(err)
	if code == ErrCodeInternal && errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return Wrap(err, code, message)
}
