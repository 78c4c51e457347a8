package loginflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-signin/pkg/errors"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/notification"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery staple"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeIdentityClient struct {
	identity externalprovider.Identity
	err      error
}

func (f *fakeIdentityClient) Exchange(ctx context.Context, assertion externalprovider.Assertion) (externalprovider.Identity, error) {
	return f.identity, f.err
}

// countingChecker records whether the credential check ran
type countingChecker struct {
	calls int32
	next  CredentialChecker
}

func (c *countingChecker) Validate(ctx context.Context, email, password string, loginCtx login.LoginContext) (login.Outcome, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.Validate(ctx, email, password, loginCtx)
}

type harness struct {
	users    *login.InMemoryUserStore
	codes    *twofa.InMemoryCodeStore
	invites  *signup.InMemoryInviteStore
	email    *notification.MockNotifier
	sms      *notification.MockNotifier
	idp      *fakeIdentityClient
	checker  *countingChecker
	services ServiceDependencies
	flow     *LoginFlowService
}

func newHarness(t *testing.T, mutate func(*ServiceDependencies)) *harness {
	t.Helper()
	h := &harness{
		users:   login.NewInMemoryUserStore(login.WithPasswordHasher(&login.BcryptHasher{Cost: bcrypt.MinCost})),
		codes:   twofa.NewInMemoryCodeStore(),
		invites: signup.NewInMemoryInviteStore(),
		email:   &notification.MockNotifier{},
		sms:     &notification.MockNotifier{},
		idp:     &fakeIdentityClient{},
	}
	nm, err := notification.NewNotificationManagerWithOptions(
		notification.WithNotifier(notification.EmailSystem, h.email),
		notification.WithNotifier(notification.SMSSystem, h.sms),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)

	h.checker = &countingChecker{next: login.NewCredentialValidator(h.users)}
	h.services = ServiceDependencies{
		Credentials:       h.checker,
		Users:             h.users,
		Resolver:          externalprovider.NewResolver(h.idp, h.users),
		Invitations:       signup.NewInvitationService(h.invites),
		Codes:             twofa.NewCodeService(h.codes, nm),
		Verifier:          twofa.NewVerifier(h.codes),
		MaxFailedAttempts: 10,
		Now:               func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&h.services)
	}
	h.flow = NewLoginFlowService(h.services)
	return h
}

func (h *harness) seed(t *testing.T, email string, mutate func(*login.ProvisionParams)) login.Account {
	t.Helper()
	hash, err := (&login.BcryptHasher{Cost: bcrypt.MinCost}).Hash(testPassword)
	require.NoError(t, err)
	params := login.ProvisionParams{
		DisplayName:         "Test User",
		EmailAddress:        email,
		PasswordHash:        hash,
		State:               login.StateActive,
		MaxFailedLoginCount: 3,
	}
	if mutate != nil {
		mutate(&params)
	}
	account, err := h.users.Provision(context.Background(), params)
	require.NoError(t, err)
	return account
}

func (h *harness) login(email, password string, attempt AttemptContext) Result {
	return h.flow.ProcessLogin(context.Background(), Request{
		EmailAddress: email,
		Password:     password,
		IPAddress:    "203.0.113.7",
		UserAgent:    "go-test",
	}, attempt)
}

func (h *harness) account(t *testing.T, email string) login.Account {
	t.Helper()
	account, err := h.users.LookupByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, account)
	return *account
}

func mobile(n string) *string {
	return &n
}

func TestProcessLogin_GrantedWithoutSecondFactor(t *testing.T) {
	h := newHarness(t, nil)
	seeded := h.seed(t, "plain@example.com", func(p *login.ProvisionParams) { p.PlatformAdmin = true })
	_, err := h.users.Apply(context.Background(), seeded.ID, login.IncrementFailure)
	require.NoError(t, err)

	result := h.login("PLAIN@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionGranted, result.Decision)
	assert.Nil(t, result.Error)
	require.NotNil(t, result.Context.Session)
	assert.Equal(t, seeded.ID, result.Context.Session.UserID)
	assert.True(t, result.Context.Session.PlatformAdmin)
	assert.Equal(t, testNow, result.Context.Session.CreatedAt)

	stored := h.account(t, "plain@example.com")
	assert.Equal(t, 0, stored.FailedLoginCount)
	assert.NotNil(t, stored.LoggedInAt)
	assert.Empty(t, h.email.Sent())
	assert.Empty(t, h.sms.Sent())
}

func TestProcessLogin_NoSuchUser(t *testing.T) {
	h := newHarness(t, nil)

	result := h.login("ghost@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeNoSuchUser, result.Error.Type)
	assert.Equal(t, http.StatusUnauthorized, result.Error.HTTPStatus())
	assert.Nil(t, result.Context.Session)
}

func TestProcessLogin_InvalidPasswordCountsFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "user@example.com", nil)

	result := h.login("user@example.com", "wrong", AttemptContext{})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeInvalidCredentials, result.Error.Type)
	assert.Equal(t, http.StatusUnauthorized, result.Error.HTTPStatus())
	assert.Equal(t, 1, h.account(t, "user@example.com").FailedLoginCount)
}

func TestProcessLogin_LockoutAtThreshold(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "user@example.com", nil)

	for i := 0; i < 2; i++ {
		result := h.login("user@example.com", "wrong", AttemptContext{})
		require.NotNil(t, result.Error)
		assert.Equal(t, ErrorTypeInvalidCredentials, result.Error.Type)
	}

	result := h.login("user@example.com", "wrong", AttemptContext{})
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeAccountLocked, result.Error.Type)
	assert.Equal(t, http.StatusBadRequest, result.Error.HTTPStatus())
	assert.Contains(t, result.Error.Message, "locked after 3 sign-in attempts")
	assert.True(t, h.account(t, "user@example.com").IsLocked())

	// the correct password does not unlock
	result = h.login("user@example.com", testPassword, AttemptContext{})
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeAccountLocked, result.Error.Type)
	assert.Nil(t, result.Context.Session)
	assert.Empty(t, h.email.Sent())
}

func TestProcessLogin_PasswordExpired(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "Expired@example.com", func(p *login.ProvisionParams) { p.PasswordExpired = true })

	result := h.login("expired@example.com", "anything", AttemptContext{})
	assert.Equal(t, DecisionForcedReset, result.Decision)
	assert.Nil(t, result.Error)
	assert.Equal(t, "Expired@example.com", result.Context.ResetEmailAddress)
	assert.Nil(t, result.Context.Session)
	assert.Equal(t, 0, h.account(t, "expired@example.com").FailedLoginCount)
	assert.Empty(t, h.email.Sent())
}

func TestProcessLogin_PendingAccount(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "pending@example.com", func(p *login.ProvisionParams) {
		p.State = login.StatePending
		p.MfaPreference = login.MfaSms
		p.MobileNumber = mobile("+16135550100")
	})

	result := h.login("pending@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionVerificationRequired, result.Decision)
	assert.Nil(t, result.Error)
	assert.Empty(t, h.sms.Sent())
	assert.Nil(t, result.Context.PendingChallenge)
}

func TestProcessLogin_InviteMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "bob@example.com", nil)
	invite, err := h.invites.Create(context.Background(), "alice@example.com", nil)
	require.NoError(t, err)
	token := invite.Token()

	result := h.login("bob@example.com", testPassword, AttemptContext{PendingInvite: &token})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeInviteMismatch, result.Error.Type)
	assert.Equal(t, http.StatusForbidden, result.Error.HTTPStatus())
	assert.Equal(t, "You cannot accept an invite for another person.", result.Error.Message)
	assert.Nil(t, result.Context.PendingInvite)
	assert.Nil(t, result.Context.Session)

	stored, err := h.invites.Get(context.Background(), invite.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptedBy)
}

func TestProcessLogin_InviteAccepted(t *testing.T) {
	h := newHarness(t, nil)
	account := h.seed(t, "alice@example.com", nil)
	invite, err := h.invites.Create(context.Background(), "Alice@Example.com", nil)
	require.NoError(t, err)
	token := invite.Token()

	result := h.login("alice@example.com", testPassword, AttemptContext{PendingInvite: &token})
	assert.Equal(t, DecisionGranted, result.Decision)
	require.NotNil(t, result.Context.PendingInvite)
	assert.True(t, result.Context.PendingInvite.Accepted)

	stored, err := h.invites.Get(context.Background(), invite.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AcceptedBy)
	assert.Equal(t, account.ID, *stored.AcceptedBy)
}

func TestProcessLogin_SmsChallengeThenVerify(t *testing.T) {
	h := newHarness(t, nil)
	account := h.seed(t, "sms@example.com", func(p *login.ProvisionParams) {
		p.MfaPreference = login.MfaSms
		p.MobileNumber = mobile("+16135550100")
	})

	result := h.login("sms@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionSecondFactorPending, result.Decision)
	require.NotNil(t, result.Context.PendingChallenge)
	assert.Equal(t, twofa.TWO_FACTOR_TYPE_SMS, result.Context.PendingChallenge.Channel)
	assert.False(t, result.Context.PendingChallenge.RequiresEmailLoginOverride)
	assert.Nil(t, result.Context.Session)
	require.Len(t, h.sms.Sent(), 1)
	assert.Empty(t, h.email.Sent())

	// an email code issued earlier is cleared by the sms verification
	_, err := h.codes.Issue(context.Background(), account.ID, twofa.TWO_FACTOR_TYPE_EMAIL)
	require.NoError(t, err)

	code := h.sms.Sent()[0].Data["TwofaPasscode"]
	verified := h.flow.ProcessSecondFactor(context.Background(), code, result.Context)
	assert.Equal(t, DecisionGranted, verified.Decision)
	assert.Nil(t, verified.Error)
	assert.Nil(t, verified.Context.PendingChallenge)
	require.NotNil(t, verified.Context.Session)
	assert.Equal(t, account.ID, verified.Context.Session.UserID)

	active, err := h.codes.ListActive(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	// replaying the code against the same challenge fails
	replay := h.flow.ProcessSecondFactor(context.Background(), code, result.Context)
	assert.Equal(t, DecisionRejected, replay.Decision)
	require.NotNil(t, replay.Error)
	assert.Equal(t, ErrorTypeCodeRejected, replay.Error.Type)
}

func TestProcessLogin_EmailChallenge(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "email@example.com", func(p *login.ProvisionParams) { p.MfaPreference = login.MfaEmail })

	result := h.login("email@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionSecondFactorPending, result.Decision)
	require.NotNil(t, result.Context.PendingChallenge)
	assert.Equal(t, twofa.TWO_FACTOR_TYPE_EMAIL, result.Context.PendingChallenge.Channel)
	assert.False(t, result.Context.PendingChallenge.RequiresEmailLoginOverride)
	require.Len(t, h.email.Sent(), 1)
	assert.Equal(t, "email@example.com", h.email.Sent()[0].To)
}

func TestProcessLogin_RequiresEmailLoginOverridesSms(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "override@example.com", func(p *login.ProvisionParams) {
		p.MfaPreference = login.MfaSms
		p.MobileNumber = mobile("+16135550100")
		p.RequiresEmailLogin = true
	})

	result := h.login("override@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionSecondFactorPending, result.Decision)
	require.NotNil(t, result.Context.PendingChallenge)
	assert.Equal(t, twofa.TWO_FACTOR_TYPE_EMAIL, result.Context.PendingChallenge.Channel)
	assert.True(t, result.Context.PendingChallenge.RequiresEmailLoginOverride)
	assert.Len(t, h.email.Sent(), 1)
	assert.Empty(t, h.sms.Sent())
}

func TestProcessLogin_DeliveryFailureRejectsGenerically(t *testing.T) {
	h := newHarness(t, nil)
	h.email.Err = errors.New("smtp: 421 service not available")
	h.seed(t, "email@example.com", func(p *login.ProvisionParams) { p.MfaPreference = login.MfaEmail })

	result := h.login("email@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeInternalError, result.Error.Type)
	assert.Equal(t, apperrors.ErrCodeDeliveryFailed, result.Error.Code)
	assert.Equal(t, http.StatusInternalServerError, result.Error.HTTPStatus())
	assert.NotContains(t, result.Error.Message, "smtp")
	assert.Nil(t, result.Context.PendingChallenge)
}

func TestProcessLogin_AlreadyAuthenticated(t *testing.T) {
	h := newHarness(t, nil)
	account := h.seed(t, "user@example.com", func(p *login.ProvisionParams) { p.MfaPreference = login.MfaEmail })
	attempt := AttemptContext{Session: &AuthenticatedSession{UserID: account.ID, CreatedAt: testNow}}

	result := h.login("user@example.com", testPassword, attempt)
	assert.Equal(t, DecisionAlreadyAuthenticated, result.Decision)
	assert.Equal(t, attempt, result.Context)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.checker.calls))
	assert.Empty(t, h.email.Sent())

	federated := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, attempt)
	assert.Equal(t, DecisionAlreadyAuthenticated, federated.Decision)

	second := h.flow.ProcessSecondFactor(context.Background(), "123456", attempt)
	assert.Equal(t, DecisionAlreadyAuthenticated, second.Decision)
}

func TestProcessLogin_FederationRequired(t *testing.T) {
	h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
	h.seed(t, "user@example.com", nil)

	result := h.login("user@example.com", testPassword, AttemptContext{})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeFederationRequired, result.Error.Type)
	assert.Equal(t, http.StatusBadRequest, result.Error.HTTPStatus())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.checker.calls))
}

func TestProcessFederatedLogin_ProvisionsAndGrants(t *testing.T) {
	h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
	h.idp.identity = externalprovider.Identity{Subject: "s-1", Email: "new.person@example.com", EmailVerified: true}

	result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
	assert.Equal(t, DecisionGranted, result.Decision)
	require.NotNil(t, result.Context.Session)
	require.NotNil(t, result.Account)
	assert.Equal(t, "New Person", result.Account.Name)
	assert.Equal(t, login.AuthTypeFederated, result.Account.AuthType)
	assert.Nil(t, result.Account.MobileNumber)
	assert.Empty(t, h.email.Sent())
	assert.Empty(t, h.sms.Sent())
}

func TestProcessFederatedLogin_BypassesSecondFactor(t *testing.T) {
	h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
	account := h.seed(t, "sms@example.com", func(p *login.ProvisionParams) {
		p.MfaPreference = login.MfaSms
		p.MobileNumber = mobile("+16135550100")
	})
	h.idp.identity = externalprovider.Identity{Email: "sms@example.com", EmailVerified: true}

	result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
	assert.Equal(t, DecisionGranted, result.Decision)
	require.NotNil(t, result.Context.Session)
	assert.Equal(t, account.ID, result.Context.Session.UserID)
	assert.Empty(t, h.sms.Sent())
}

func TestProcessFederatedLogin_Rejections(t *testing.T) {
	t.Run("assertion rejected", func(t *testing.T) {
		h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
		h.idp.err = errors.New("invalid_grant")

		result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
		assert.Equal(t, DecisionRejected, result.Decision)
		require.NotNil(t, result.Error)
		assert.Equal(t, ErrorTypeAssertionRejected, result.Error.Type)
		assert.Equal(t, http.StatusUnauthorized, result.Error.HTTPStatus())
		assert.NotContains(t, result.Error.Message, "invalid_grant")
	})

	t.Run("unverified email for existing account", func(t *testing.T) {
		h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
		h.seed(t, "admin@example.com", func(p *login.ProvisionParams) {
			p.PlatformAdmin = true
			p.MfaPreference = login.MfaSms
			p.MobileNumber = mobile("+16135550100")
		})
		h.idp.identity = externalprovider.Identity{Email: "admin@example.com", EmailVerified: false}

		result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
		assert.Equal(t, DecisionRejected, result.Decision)
		require.NotNil(t, result.Error)
		assert.Equal(t, ErrorTypeAssertionRejected, result.Error.Type)
		assert.Nil(t, result.Context.Session)
		assert.Nil(t, result.Account)
	})

	t.Run("federation disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		h.idp.identity = externalprovider.Identity{Email: "x@example.com", EmailVerified: true}

		result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
		require.NotNil(t, result.Error)
		assert.Equal(t, ErrorTypeFederationDisabled, result.Error.Type)
	})

	t.Run("locked account", func(t *testing.T) {
		h := newHarness(t, func(s *ServiceDependencies) { s.FederationEnabled = true })
		account := h.seed(t, "locked@example.com", nil)
		_, err := h.users.Apply(context.Background(), account.ID, login.Lock)
		require.NoError(t, err)
		h.idp.identity = externalprovider.Identity{Email: "locked@example.com", EmailVerified: true}

		result := h.flow.ProcessFederatedLogin(context.Background(), externalprovider.Assertion{Code: "c"}, AttemptContext{})
		assert.Equal(t, DecisionRejected, result.Decision)
		require.NotNil(t, result.Error)
		assert.Equal(t, ErrorTypeSignInRefused, result.Error.Type)
		assert.Nil(t, result.Context.Session)
	})
}

func TestProcessSecondFactor_NoChallenge(t *testing.T) {
	h := newHarness(t, nil)

	result := h.flow.ProcessSecondFactor(context.Background(), "123456", AttemptContext{})
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeNoPendingChallenge, result.Error.Type)
	assert.Equal(t, http.StatusBadRequest, result.Error.HTTPStatus())
}

// unavailableCodes fails every lookup the way a dropped Redis connection does
type unavailableCodes struct {
	twofa.CodeStore
}

func (unavailableCodes) ListActive(ctx context.Context, userID uuid.UUID) ([]twofa.VerificationCode, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", twofa.ErrStoreUnavailable)
}

func TestProcessSecondFactor_StoreUnavailable(t *testing.T) {
	h := newHarness(t, func(s *ServiceDependencies) {
		s.Verifier = twofa.NewVerifier(unavailableCodes{})
	})
	h.seed(t, "email@example.com", func(p *login.ProvisionParams) { p.MfaPreference = login.MfaEmail })

	pending := h.login("email@example.com", testPassword, AttemptContext{})
	require.Equal(t, DecisionSecondFactorPending, pending.Decision)

	code := h.email.Sent()[0].Data["TwofaPasscode"]
	result := h.flow.ProcessSecondFactor(context.Background(), code, pending.Context)
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeInternalError, result.Error.Type)
	assert.Equal(t, apperrors.ErrCodeUnavailable, result.Error.Code)
	assert.Equal(t, http.StatusServiceUnavailable, result.Error.HTTPStatus())
	assert.NotContains(t, result.Error.Message, "connection refused")
}

func TestProcessSecondFactor_WrongCodeKeepsChallenge(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "email@example.com", func(p *login.ProvisionParams) { p.MfaPreference = login.MfaEmail })

	pending := h.login("email@example.com", testPassword, AttemptContext{})
	require.Equal(t, DecisionSecondFactorPending, pending.Decision)

	result := h.flow.ProcessSecondFactor(context.Background(), "000000", pending.Context)
	assert.Equal(t, DecisionRejected, result.Decision)
	require.NotNil(t, result.Error)
	assert.Equal(t, ErrorTypeCodeRejected, result.Error.Type)
	assert.Equal(t, http.StatusUnauthorized, result.Error.HTTPStatus())
	assert.Equal(t, pending.Context.PendingChallenge, result.Context.PendingChallenge)

	code := h.email.Sent()[0].Data["TwofaPasscode"]
	result = h.flow.ProcessSecondFactor(context.Background(), code, result.Context)
	assert.Equal(t, DecisionGranted, result.Decision)
}

func TestProcessSecondFactor_ActivatesPendingAccount(t *testing.T) {
	h := newHarness(t, nil)
	account := h.seed(t, "new@example.com", func(p *login.ProvisionParams) { p.State = login.StatePending })

	code, err := h.codes.Issue(context.Background(), account.ID, twofa.TWO_FACTOR_TYPE_EMAIL)
	require.NoError(t, err)
	attempt := AttemptContext{PendingChallenge: &PendingChallenge{
		UserID:   account.ID,
		Channel:  twofa.TWO_FACTOR_TYPE_EMAIL,
		IssuedAt: testNow,
	}}

	result := h.flow.ProcessSecondFactor(context.Background(), code, attempt)
	assert.Equal(t, DecisionGranted, result.Decision)
	require.NotNil(t, result.Account)
	assert.Equal(t, login.StateActive, result.Account.State)
	assert.Equal(t, login.StateActive, h.account(t, "new@example.com").State)
}
