package loginflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/tendant/simple-signin/pkg/errors"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
)

// FederationModeStep keeps the password and federated entry points apart.
// With federation enabled a password submission is refused; a federated
// assertion is resolved to an account, provisioning it on first sight.
type FederationModeStep struct{}

func NewFederationModeStep() *FederationModeStep {
	return &FederationModeStep{}
}

func (s *FederationModeStep) Name() string {
	return "federation_mode"
}

func (s *FederationModeStep) Order() int {
	return OrderFederationMode
}

func (s *FederationModeStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *FederationModeStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	services := flowContext.Services

	if flowContext.Assertion == nil {
		if services.FederationEnabled {
			return &StepResult{
				Error: newError(ErrorTypeFederationRequired,
					apperrors.New(apperrors.ErrCodeFederationRequired, "Sign in with your organization's identity provider.")),
			}, nil
		}
		return &StepResult{Continue: true}, nil
	}

	if !services.FederationEnabled || services.Resolver == nil {
		return &StepResult{
			Error: newError(ErrorTypeFederationDisabled,
				apperrors.New(apperrors.ErrCodeFederationDisabled, "Federated sign-in is not enabled.")),
		}, nil
	}

	account, created, err := services.Resolver.Resolve(ctx, *flowContext.Assertion)
	if errors.Is(err, externalprovider.ErrAssertionRejected) {
		return &StepResult{
			Error: newError(ErrorTypeAssertionRejected, apperrors.AssertionRejected(err)),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve federated account: %w", err)
	}

	flowContext.Account = &account
	flowContext.Federated = true
	return &StepResult{
		Continue: true,
		Data: map[string]interface{}{
			"provisioned": created,
		},
	}, nil
}

// CredentialCheckStep turns the credential outcome into a decision or lets a
// valid account through
type CredentialCheckStep struct{}

func NewCredentialCheckStep() *CredentialCheckStep {
	return &CredentialCheckStep{}
}

func (s *CredentialCheckStep) Name() string {
	return "credential_check"
}

func (s *CredentialCheckStep) Order() int {
	return OrderCredentialCheck
}

func (s *CredentialCheckStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Federated
}

func (s *CredentialCheckStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	req := flowContext.Request
	outcome, err := flowContext.Services.Credentials.Validate(ctx, req.EmailAddress, req.Password, req.loginContext())
	if err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case login.OutcomeNoSuchUser:
		return &StepResult{
			Error: newError(ErrorTypeNoSuchUser, apperrors.NoSuchUser(req.EmailAddress)),
		}, nil

	case login.OutcomePasswordExpired:
		flowContext.Account = outcome.Account
		flowContext.Attempt.ResetEmailAddress = outcome.Account.EmailAddress
		flowContext.Result.Decision = DecisionForcedReset
		return &StepResult{EarlyReturn: true}, nil

	case login.OutcomeLocked:
		flowContext.Account = outcome.Account
		threshold := outcome.Account.MaxFailedLoginCount
		if threshold <= 0 {
			threshold = flowContext.Services.MaxFailedAttempts
		}
		return &StepResult{
			Error: newError(ErrorTypeAccountLocked, apperrors.AccountLocked(threshold)),
		}, nil

	case login.OutcomeInvalidCredentials:
		return &StepResult{
			Error: newError(ErrorTypeInvalidCredentials, apperrors.InvalidCredentials()),
		}, nil

	case login.OutcomeValid:
		flowContext.Account = outcome.Account
		return &StepResult{Continue: true}, nil

	default:
		return nil, fmt.Errorf("unexpected credential outcome %s", outcome.Kind)
	}
}

// PendingAccountStep sends accounts that never finished verification back
// to the verification flow
type PendingAccountStep struct{}

func NewPendingAccountStep() *PendingAccountStep {
	return &PendingAccountStep{}
}

func (s *PendingAccountStep) Name() string {
	return "pending_account"
}

func (s *PendingAccountStep) Order() int {
	return OrderPendingAccount
}

func (s *PendingAccountStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Federated || flowContext.Account == nil
}

func (s *PendingAccountStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	if !flowContext.Account.IsPending() {
		return &StepResult{Continue: true}, nil
	}
	slog.Info("Sign-in for pending account", "user_id", flowContext.Account.ID)
	flowContext.Result.Decision = DecisionVerificationRequired
	return &StepResult{EarlyReturn: true}, nil
}

// InviteReconciliationStep accepts the visitor's pending invite, or drops it
// when it was issued to somebody else
type InviteReconciliationStep struct{}

func NewInviteReconciliationStep() *InviteReconciliationStep {
	return &InviteReconciliationStep{}
}

func (s *InviteReconciliationStep) Name() string {
	return "invite_reconciliation"
}

func (s *InviteReconciliationStep) Order() int {
	return OrderInviteReconciliation
}

func (s *InviteReconciliationStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Federated || flowContext.Account == nil || flowContext.Attempt.PendingInvite == nil
}

func (s *InviteReconciliationStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	account := *flowContext.Account
	invite := *flowContext.Attempt.PendingInvite

	mismatch := func() *StepResult {
		slog.Warn("Invite presented by another account", "invite_id", invite.ID, "user_id", account.ID)
		flowContext.Attempt.PendingInvite = nil
		return &StepResult{Error: newError(ErrorTypeInviteMismatch, apperrors.InviteMismatch())}
	}

	if !login.SameEmail(invite.EmailAddress, account.EmailAddress) {
		return mismatch(), nil
	}

	if flowContext.Services.Invitations == nil {
		return nil, errors.New("no invitation service configured")
	}
	accepted, err := flowContext.Services.Invitations.Accept(ctx, invite, account)
	if errors.Is(err, signup.ErrInviteMismatch) || errors.Is(err, signup.ErrInviteAcceptedByOther) {
		return mismatch(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}

	flowContext.Attempt.PendingInvite = &accepted
	return &StepResult{Continue: true}, nil
}

// FactorDecisionStep records the successful sign-in and then either issues
// a second-factor code or grants the session
type FactorDecisionStep struct{}

func NewFactorDecisionStep() *FactorDecisionStep {
	return &FactorDecisionStep{}
}

func (s *FactorDecisionStep) Name() string {
	return "factor_decision"
}

func (s *FactorDecisionStep) Order() int {
	return OrderFactorDecision
}

func (s *FactorDecisionStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *FactorDecisionStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	services := flowContext.Services
	account := flowContext.Account
	if account == nil {
		return nil, errors.New("no account resolved before factor decision")
	}

	recorded, err := services.Users.RecordSignInSuccess(ctx, *account)
	if err != nil {
		return nil, fmt.Errorf("record sign-in: %w", err)
	}
	if !recorded {
		slog.Warn("Sign-in not recorded", "user_id", account.ID)
		return &StepResult{
			Error: newError(ErrorTypeSignInRefused, apperrors.InvalidCredentials()),
		}, nil
	}

	// Federated accounts are trusted to the identity provider's assurance
	if flowContext.Federated {
		grant(flowContext, *account, services.now())
		return &StepResult{EarlyReturn: true}, nil
	}

	requiresEmailLogin := account.RequiresEmailLogin
	switch {
	case account.SmsAuth() && !requiresEmailLogin:
		if err := challenge(ctx, flowContext, *account, twofa.TWO_FACTOR_TYPE_SMS, false); err != nil {
			return nil, err
		}
	case account.EmailAuth() || requiresEmailLogin:
		if err := challenge(ctx, flowContext, *account, twofa.TWO_FACTOR_TYPE_EMAIL, requiresEmailLogin); err != nil {
			return nil, err
		}
	default:
		grant(flowContext, *account, services.now())
	}
	return &StepResult{EarlyReturn: true}, nil
}

func challenge(ctx context.Context, flowContext *FlowContext, account login.Account, channel twofa.Channel, override bool) error {
	services := flowContext.Services
	err := services.Codes.SendCode(ctx, twofa.Recipient{
		UserID:       account.ID,
		Name:         account.Name,
		EmailAddress: account.EmailAddress,
		MobileNumber: account.MobileNumber,
	}, channel)
	if err != nil {
		return fmt.Errorf("send %s code: %w", channel, err)
	}

	flowContext.Attempt.PendingChallenge = &PendingChallenge{
		UserID:                     account.ID,
		Channel:                    channel,
		RequiresEmailLoginOverride: override,
		IssuedAt:                   services.now(),
	}
	flowContext.Result.Decision = DecisionSecondFactorPending
	return nil
}

func grant(flowContext *FlowContext, account login.Account, now time.Time) {
	flowContext.Attempt.PendingChallenge = nil
	flowContext.Attempt.Session = &AuthenticatedSession{
		UserID:        account.ID,
		PlatformAdmin: account.PlatformAdmin,
		CreatedAt:     now,
	}
	flowContext.Result.Decision = DecisionGranted
	slog.Info("Sign-in granted", "user_id", account.ID, "federated", flowContext.Federated)
}
