// Package errors provides coded errors for simple-signin.
//
// Every failure a visitor can see carries an ErrorCode, and every code maps
// to one HTTP status:
//
//	err := errors.AccountLocked(10)
//	err.HTTPStatusCode() // 400
//
//	if errors.GetCode(err) == errors.ErrCodeUserLocked {
//		...
//	}
//
// Wrap keeps the underlying error for logs and errors.Is while the message
// stays safe to show:
//
//	return errors.Wrap(dbErr, errors.ErrCodeUnavailable, "account store unavailable")
package errors
