package loginapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-signin/pkg/loginflow"
)

// Response status constants
const (
	STATUS_SUCCESS               = "success"
	STATUS_2FA_REQUIRED          = "2fa_required"
	STATUS_PASSWORD_EXPIRED      = "password_expired"
	STATUS_VERIFICATION_REQUIRED = "verification_required"
	STATUS_ALREADY_SIGNED_IN     = "already_signed_in"
	STATUS_INVITE_PENDING        = "invite_pending"
	STATUS_ERROR                 = "error"
)

// Where the client goes next for each decision
const (
	NEXT_SIGN_IN             = "/sign-in"
	NEXT_ACCOUNTS            = "/accounts"
	NEXT_TWO_FACTOR          = "/two-factor"
	NEXT_FORCED_RESET        = "/forced-password-reset"
	NEXT_RESEND_VERIFICATION = "/resend-email-verification"
)

// PublicCredentialMessage is the only message shown for unknown emails,
// wrong passwords and refused sign-ins
const PublicCredentialMessage = "The email address or password you entered is incorrect."

type SignInRequest struct {
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type TwoFactorRequest struct {
	Code string `json:"code"`
}

type SignInResponse struct {
	Status             string `json:"status"`
	Message            string `json:"message,omitempty"`
	Next               string `json:"next,omitempty"`
	Channel            string `json:"channel,omitempty"`
	RequiresEmailLogin bool   `json:"requires_email_login,omitempty"`
	ResetEmailAddress  string `json:"reset_email_address,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type MeResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EmailAddress  string `json:"email_address"`
	AuthType      string `json:"auth_type"`
	PlatformAdmin bool   `json:"platform_admin"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// publicError hides which credential check failed
func publicError(err *loginflow.Error) ErrorResponse {
	switch err.Type {
	case loginflow.ErrorTypeNoSuchUser, loginflow.ErrorTypeInvalidCredentials, loginflow.ErrorTypeSignInRefused:
		return ErrorResponse{
			Status:  STATUS_ERROR,
			Type:    loginflow.ErrorTypeInvalidCredentials,
			Message: PublicCredentialMessage,
		}
	default:
		return ErrorResponse{
			Status:  STATUS_ERROR,
			Type:    err.Type,
			Message: err.Message,
		}
	}
}

// publicStatus keeps unknown emails and wrong passwords on the same status
func publicStatus(err *loginflow.Error) int {
	switch err.Type {
	case loginflow.ErrorTypeNoSuchUser, loginflow.ErrorTypeInvalidCredentials, loginflow.ErrorTypeSignInRefused:
		return http.StatusUnauthorized
	default:
		return err.HTTPStatus()
	}
}
