package loginapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/loginflow"
	"github.com/tendant/simple-signin/pkg/sessionstate"
	"github.com/tendant/simple-signin/pkg/signup"
	"golang.org/x/oauth2"
)

const (
	// SESSION_COOKIE_NAME is the cookie jwtauth.Verifier reads
	SESSION_COOKIE_NAME = "jwt"
	OIDC_STATE_COOKIE   = "signin_oidc_state"

	DefaultSessionExpiry = 8 * time.Hour
	oidcStateExpiry      = 10 * time.Minute
)

// Authorizer builds the identity provider redirect. *externalprovider.OIDCClient implements it.
type Authorizer interface {
	AuthCodeURL(state, nonce string) string
}

// InviteFinder loads invites by id. signup.InviteStore implements it.
type InviteFinder interface {
	Get(ctx context.Context, id uuid.UUID) (signup.Invite, error)
}

type Handle struct {
	flow          *loginflow.LoginFlowService
	users         login.UserStore
	attempts      *sessionstate.Store
	tokenAuth     *jwtauth.JWTAuth
	cookies       sessionstate.CookieSetter
	authorizer    Authorizer
	invites       InviteFinder
	sessionExpiry time.Duration
}

type Option func(*Handle)

func NewHandle(opts ...Option) Handle {
	h := Handle{
		cookies:       sessionstate.NewCookieSetter(true, true),
		sessionExpiry: DefaultSessionExpiry,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func WithLoginFlowService(flow *loginflow.LoginFlowService) Option {
	return func(h *Handle) {
		h.flow = flow
	}
}

func WithUserStore(users login.UserStore) Option {
	return func(h *Handle) {
		h.users = users
	}
}

func WithAttemptStore(store *sessionstate.Store) Option {
	return func(h *Handle) {
		h.attempts = store
	}
}

// WithTokenAuth sets the signer for session tokens and the OIDC state cookie
func WithTokenAuth(tokenAuth *jwtauth.JWTAuth) Option {
	return func(h *Handle) {
		h.tokenAuth = tokenAuth
	}
}

func WithCookieSetter(cookies sessionstate.CookieSetter) Option {
	return func(h *Handle) {
		h.cookies = cookies
	}
}

// WithAuthorizer enables the /oidc/login redirect
func WithAuthorizer(authorizer Authorizer) Option {
	return func(h *Handle) {
		h.authorizer = authorizer
	}
}

// WithInviteStore enables the /invitation/{id} entry point
func WithInviteStore(invites InviteFinder) Option {
	return func(h *Handle) {
		h.invites = invites
	}
}

func WithSessionExpiry(expiry time.Duration) Option {
	return func(h *Handle) {
		if expiry > 0 {
			h.sessionExpiry = expiry
		}
	}
}

// PostSignIn handles the email and password form
// (POST /sign-in)
func (h Handle) PostSignIn(w http.ResponseWriter, r *http.Request) {
	data := SignInRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Status: STATUS_ERROR, Message: "Unable to parse request body"})
		return
	}
	if strings.TrimSpace(data.EmailAddress) == "" || data.Password == "" {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Status: STATUS_ERROR, Message: "Email address and password are required"})
		return
	}

	result := h.flow.ProcessLogin(r.Context(), loginflow.Request{
		EmailAddress: data.EmailAddress,
		Password:     data.Password,
		IPAddress:    getIPAddressFromRequest(r),
		UserAgent:    getUserAgentFromRequest(r),
	}, h.loadAttempt(r))

	h.respond(w, r, result)
}

// PostTwoFactor verifies the code sent for the pending challenge
// (POST /two-factor)
func (h Handle) PostTwoFactor(w http.ResponseWriter, r *http.Request) {
	data := TwoFactorRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Status: STATUS_ERROR, Message: "Unable to parse request body"})
		return
	}

	result := h.flow.ProcessSecondFactor(r.Context(), strings.TrimSpace(data.Code), h.loadAttempt(r))
	h.respond(w, r, result)
}

// GetOIDCLogin redirects to the identity provider
// (GET /oidc/login)
func (h Handle) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.authorizer == nil {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{Status: STATUS_ERROR, Message: "Federated sign-in is not enabled."})
		return
	}

	state, nonce := oauth2.GenerateVerifier(), oauth2.GenerateVerifier()
	claims := map[string]interface{}{"state": state, "nonce": nonce}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, oidcStateExpiry)
	_, signed, err := h.tokenAuth.Encode(claims)
	if err != nil {
		slog.Error("Failed to sign oidc state", "err", err)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Status: STATUS_ERROR, Message: "Sign-in failed. Please try again."})
		return
	}
	h.cookies.SetCookie(w, OIDC_STATE_COOKIE, signed, time.Now().Add(oidcStateExpiry))

	http.Redirect(w, r, h.authorizer.AuthCodeURL(state, nonce), http.StatusFound)
}

// GetOIDCCallback completes federated sign-in
// (GET /oidc/callback)
func (h Handle) GetOIDCCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	assertion := externalprovider.Assertion{
		Code:  query.Get("code"),
		State: query.Get("state"),
	}

	nonce, ok := h.consumeOIDCState(w, r, assertion.State)
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Status: STATUS_ERROR, Type: loginflow.ErrorTypeAssertionRejected, Message: "Sign-in request expired. Please try again."})
		return
	}
	assertion.Nonce = nonce

	result := h.flow.ProcessFederatedLogin(r.Context(), assertion, h.loadAttempt(r))
	h.respond(w, r, result)
}

// GetInvitation puts the invite into the visitor's attempt so the next
// sign-in accepts it
// (GET /invitation/{id})
func (h Handle) GetInvitation(w http.ResponseWriter, r *http.Request) {
	notFound := ErrorResponse{Status: STATUS_ERROR, Message: "Invitation not found."}
	if h.invites == nil {
		writeJSON(w, r, http.StatusNotFound, notFound)
		return
	}
	inviteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusNotFound, notFound)
		return
	}

	invite, err := h.invites.Get(r.Context(), inviteID)
	if errors.Is(err, signup.ErrInviteNotFound) {
		writeJSON(w, r, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		slog.Error("Failed loading invite", "invite_id", inviteID, "err", err)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Status: STATUS_ERROR, Message: "Sign-in failed. Please try again."})
		return
	}

	// The session cookie is not folded in here, only the stored attempt
	attempt := h.attempts.Load(r)
	token := invite.Token()
	attempt.PendingInvite = &token
	if err := h.attempts.Save(w, attempt); err != nil {
		slog.Error("Failed to save attempt", "err", err)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Status: STATUS_ERROR, Message: "Sign-in failed. Please try again."})
		return
	}

	slog.Info("Invite attached to sign-in attempt", "invite_id", invite.ID, "accepted", token.Accepted)
	writeJSON(w, r, http.StatusOK, SignInResponse{
		Status:  STATUS_INVITE_PENDING,
		Message: "Sign in to accept your invitation",
		Next:    NEXT_SIGN_IN,
	})
}

// GetMe returns the signed-in account. Routed behind jwtauth.Verifier and Authenticator.
// (GET /me)
func (h Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Status: STATUS_ERROR, Message: "Not signed in"})
		return
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Status: STATUS_ERROR, Message: "Not signed in"})
		return
	}

	account, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		slog.Warn("Session for unknown account", "user_id", userID, "err", err)
		writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{Status: STATUS_ERROR, Message: "Not signed in"})
		return
	}

	writeJSON(w, r, http.StatusOK, MeResponse{
		ID:            account.ID.String(),
		Name:          account.Name,
		EmailAddress:  account.EmailAddress,
		AuthType:      string(account.AuthType),
		PlatformAdmin: account.PlatformAdmin,
	})
}

// PostSignOut drops the session and any attempt in progress
// (POST /sign-out)
func (h Handle) PostSignOut(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearCookie(w, SESSION_COOKIE_NAME)
	if err := h.attempts.Clear(w); err != nil {
		slog.Error("Failed to clear attempt cookie", "err", err)
	}
	writeJSON(w, r, http.StatusOK, SignInResponse{Status: STATUS_SUCCESS, Message: "Signed out"})
}

// loadAttempt restores the visitor's attempt and fills in the session from
// a still-valid session token
func (h Handle) loadAttempt(r *http.Request) loginflow.AttemptContext {
	attempt := h.attempts.Load(r)
	if attempt.Session != nil {
		return attempt
	}

	cookie, err := r.Cookie(SESSION_COOKIE_NAME)
	if err != nil || cookie.Value == "" {
		return attempt
	}
	token, err := jwtauth.VerifyToken(h.tokenAuth, cookie.Value)
	if err != nil {
		return attempt
	}
	userID, err := uuid.Parse(token.Subject())
	if err != nil {
		return attempt
	}
	platformAdmin, _ := token.PrivateClaims()["platform_admin"].(bool)
	attempt.Session = &loginflow.AuthenticatedSession{
		UserID:        userID,
		PlatformAdmin: platformAdmin,
		CreatedAt:     token.IssuedAt(),
	}
	return attempt
}

func (h Handle) consumeOIDCState(w http.ResponseWriter, r *http.Request, state string) (string, bool) {
	cookie, err := r.Cookie(OIDC_STATE_COOKIE)
	if err != nil || cookie.Value == "" || state == "" {
		return "", false
	}
	h.cookies.ClearCookie(w, OIDC_STATE_COOKIE)

	token, err := jwtauth.VerifyToken(h.tokenAuth, cookie.Value)
	if err != nil {
		slog.Info("Invalid oidc state cookie", "err", err)
		return "", false
	}
	claims := token.PrivateClaims()
	expected, _ := claims["state"].(string)
	nonce, _ := claims["nonce"].(string)
	if expected == "" || expected != state {
		slog.Warn("OIDC state mismatch")
		return "", false
	}
	return nonce, true
}

func (h Handle) issueSession(w http.ResponseWriter, session *loginflow.AuthenticatedSession) error {
	claims := map[string]interface{}{
		"sub":            session.UserID.String(),
		"platform_admin": session.PlatformAdmin,
	}
	jwtauth.SetIssuedAt(claims, session.CreatedAt)
	jwtauth.SetExpiry(claims, session.CreatedAt.Add(h.sessionExpiry))
	_, signed, err := h.tokenAuth.Encode(claims)
	if err != nil {
		return err
	}
	return h.cookies.SetCookie(w, SESSION_COOKIE_NAME, signed, session.CreatedAt.Add(h.sessionExpiry))
}

func (h Handle) respond(w http.ResponseWriter, r *http.Request, result loginflow.Result) {
	attempt := result.Context

	if result.Decision == loginflow.DecisionGranted && attempt.Session != nil {
		if err := h.issueSession(w, attempt.Session); err != nil {
			slog.Error("Failed to issue session", "err", err)
			writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Status: STATUS_ERROR, Message: "Sign-in failed. Please try again."})
			return
		}
		// The session cookie carries the session from here on
		attempt.Session = nil
	}
	if result.Decision == loginflow.DecisionAlreadyAuthenticated {
		attempt.Session = nil
	}
	if err := h.attempts.Save(w, attempt); err != nil {
		slog.Error("Failed to save attempt", "err", err)
	}

	switch result.Decision {
	case loginflow.DecisionGranted:
		writeJSON(w, r, http.StatusOK, SignInResponse{Status: STATUS_SUCCESS, Message: "Signed in", Next: NEXT_ACCOUNTS})
	case loginflow.DecisionAlreadyAuthenticated:
		writeJSON(w, r, http.StatusOK, SignInResponse{Status: STATUS_ALREADY_SIGNED_IN, Next: NEXT_ACCOUNTS})
	case loginflow.DecisionSecondFactorPending:
		challenge := result.Context.PendingChallenge
		writeJSON(w, r, http.StatusAccepted, SignInResponse{
			Status:             STATUS_2FA_REQUIRED,
			Message:            "We sent you a security code",
			Next:               NEXT_TWO_FACTOR,
			Channel:            string(challenge.Channel),
			RequiresEmailLogin: challenge.RequiresEmailLoginOverride,
		})
	case loginflow.DecisionForcedReset:
		writeJSON(w, r, http.StatusOK, SignInResponse{
			Status:            STATUS_PASSWORD_EXPIRED,
			Message:           "Your password has expired and must be reset",
			Next:              NEXT_FORCED_RESET,
			ResetEmailAddress: result.Context.ResetEmailAddress,
		})
	case loginflow.DecisionVerificationRequired:
		writeJSON(w, r, http.StatusOK, SignInResponse{
			Status:  STATUS_VERIFICATION_REQUIRED,
			Message: "Please verify your email address",
			Next:    NEXT_RESEND_VERIFICATION,
		})
	default:
		flowErr := result.Error
		if flowErr == nil {
			flowErr = &loginflow.Error{Type: loginflow.ErrorTypeInternalError, Message: "Sign-in failed. Please try again."}
		}
		writeJSON(w, r, publicStatus(flowErr), publicError(flowErr))
	}
}

func getIPAddressFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func getUserAgentFromRequest(r *http.Request) string {
	return r.Header.Get("User-Agent")
}
