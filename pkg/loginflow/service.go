package loginflow

import (
	"context"
	"log/slog"

	apperrors "github.com/tendant/simple-signin/pkg/errors"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/twofa"
)

// LoginFlowService orchestrates sign-in attempts. It holds no per-visitor
// state: every call takes the visitor's AttemptContext and returns the
// updated copy in the Result.
type LoginFlowService struct {
	services  *ServiceDependencies
	password  *FlowExecutor
	federated *FlowExecutor
}

// NewLoginFlowService creates a new login flow service.
//
// Credentials, Users, Codes and Verifier are required. Resolver is only
// needed when FederationEnabled is set, Invitations only when visitors can
// arrive with a pending invite.
func NewLoginFlowService(services ServiceDependencies) *LoginFlowService {
	builders := NewLoginFlowBuilders(&services)
	return &LoginFlowService{
		services:  &services,
		password:  builders.BuildFlowByType(FlowTypePassword),
		federated: builders.BuildFlowByType(FlowTypeFederated),
	}
}

// ProcessLogin handles an email and password submission
func (s *LoginFlowService) ProcessLogin(ctx context.Context, request Request, attempt AttemptContext) Result {
	if attempt.Session != nil {
		return alreadyAuthenticated(attempt)
	}
	result := s.password.Execute(ctx, &FlowContext{
		Request: request,
		Attempt: attempt,
	})
	logDecision("password", result)
	return result
}

// ProcessFederatedLogin handles the identity provider callback
func (s *LoginFlowService) ProcessFederatedLogin(ctx context.Context, assertion externalprovider.Assertion, attempt AttemptContext) Result {
	if attempt.Session != nil {
		return alreadyAuthenticated(attempt)
	}
	result := s.federated.Execute(ctx, &FlowContext{
		Assertion: &assertion,
		Attempt:   attempt,
	})
	logDecision("federated", result)
	return result
}

// ProcessSecondFactor verifies the code for the pending challenge and, when
// accepted, activates a pending account and grants the session. A rejected
// code leaves the challenge in place so the visitor can try again.
func (s *LoginFlowService) ProcessSecondFactor(ctx context.Context, code string, attempt AttemptContext) Result {
	if attempt.Session != nil {
		return alreadyAuthenticated(attempt)
	}

	challenge := attempt.PendingChallenge
	if challenge == nil {
		return rejected(attempt, nil, newError(ErrorTypeNoPendingChallenge,
			apperrors.New(apperrors.ErrCodeNoPendingChallenge, "There is no sign-in in progress.")))
	}

	verdict, err := s.services.Verifier.Verify(ctx, challenge.UserID, code)
	if err != nil {
		slog.Error("Second factor verification failed", "user_id", challenge.UserID, "err", err)
		return rejected(attempt, nil, internalError(err))
	}
	if verdict.Verdict != twofa.Accepted {
		if verdict.ConsumptionFailed {
			return rejected(attempt, nil, newError(ErrorTypeCodeConsumed,
				apperrors.New(apperrors.ErrCodeCodeConsumptionFailure, "This code has already been used.")))
		}
		return rejected(attempt, nil, newError(ErrorTypeCodeRejected,
			apperrors.New(apperrors.ErrCodeCodeRejected, "Code not found")))
	}

	account, err := s.services.Users.GetByID(ctx, challenge.UserID)
	if err != nil {
		slog.Error("Load account after verification failed", "user_id", challenge.UserID, "err", err)
		return rejected(attempt, nil, internalError(err))
	}
	if account.IsLocked() {
		return rejected(attempt, &account, newError(ErrorTypeAccountLocked, apperrors.AccountLocked(account.MaxFailedLoginCount)))
	}
	if account.IsPending() {
		account, err = s.services.Users.Apply(ctx, account.ID, login.Activate)
		if err != nil {
			slog.Error("Activate account failed", "user_id", challenge.UserID, "err", err)
			return rejected(attempt, nil, internalError(err))
		}
		slog.Info("Account activated by second factor", "user_id", account.ID)
	}

	attempt.PendingChallenge = nil
	attempt.Session = &AuthenticatedSession{
		UserID:        account.ID,
		PlatformAdmin: account.PlatformAdmin,
		CreatedAt:     s.services.now(),
	}
	slog.Info("Second factor accepted", "user_id", account.ID, "channel", verdict.Channel)
	return Result{
		Decision: DecisionGranted,
		Context:  attempt,
		Account:  &account,
	}
}

func alreadyAuthenticated(attempt AttemptContext) Result {
	return Result{
		Decision: DecisionAlreadyAuthenticated,
		Context:  attempt,
	}
}

func rejected(attempt AttemptContext, account *login.Account, flowErr *Error) Result {
	return Result{
		Decision: DecisionRejected,
		Context:  attempt,
		Account:  account,
		Error:    flowErr,
	}
}

func logDecision(entry string, result Result) {
	args := []any{"entry", entry, "decision", result.Decision}
	if result.Account != nil {
		args = append(args, "user_id", result.Account.ID)
	}
	if result.Error != nil {
		args = append(args, "error_type", result.Error.Type)
	}
	slog.Info("Sign-in attempt decided", args...)
}
