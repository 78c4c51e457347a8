package loginflow

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-signin/pkg/externalprovider"
	"github.com/tendant/simple-signin/pkg/login"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
)

// LoginFlowStep represents a single step in the login flow
type LoginFlowStep interface {
	// Name returns the unique name of this step
	Name() string

	// Order returns the execution order (lower numbers execute first)
	Order() int

	// Execute performs the step's logic
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped based on current context
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between login flow steps
type FlowContext struct {
	// Input data. Assertion is nil on the password path.
	Request   Request
	Assertion *externalprovider.Assertion

	// Attempt is the visitor's context; steps update it in place
	Attempt AttemptContext

	// Account is set by the step that identifies the visitor
	Account *login.Account

	// Federated is set once the account came from the identity provider
	Federated bool

	Result *Result

	// Step-specific data (can be used by steps to store intermediate results)
	StepData map[string]interface{}

	// Services (injected by the flow executor)
	Services *ServiceDependencies
}

// StepResult represents the result of executing a login flow step
type StepResult struct {
	// Continue indicates whether the flow should continue to the next step
	Continue bool

	// EarlyReturn indicates the flow should return immediately with the current result
	EarlyReturn bool

	// Error rejects the attempt
	Error *Error

	// Data can contain step-specific data to be stored in FlowContext.StepData
	Data map[string]interface{}
}

// CredentialChecker validates a submitted email and password. *login.CredentialValidator implements it.
type CredentialChecker interface {
	Validate(ctx context.Context, email, password string, loginCtx login.LoginContext) (login.Outcome, error)
}

// AccountResolver maps a federated assertion to an account. *externalprovider.Resolver implements it.
type AccountResolver interface {
	Resolve(ctx context.Context, assertion externalprovider.Assertion) (login.Account, bool, error)
}

// InviteAcceptor accepts an invite for an account. *signup.InvitationService implements it.
type InviteAcceptor interface {
	Accept(ctx context.Context, token signup.InviteToken, account login.Account) (signup.InviteToken, error)
}

// CodeSender issues and delivers a second-factor code. *twofa.CodeService implements it.
type CodeSender interface {
	SendCode(ctx context.Context, recipient twofa.Recipient, channel twofa.Channel) error
}

// CodeVerifier checks a submitted code. *twofa.Verifier implements it.
type CodeVerifier interface {
	Verify(ctx context.Context, userID uuid.UUID, code string) (twofa.VerifyResult, error)
}

// ServiceDependencies contains all the services needed by login flow steps
type ServiceDependencies struct {
	Credentials CredentialChecker
	Users       login.UserStore
	Resolver    AccountResolver
	Invitations InviteAcceptor
	Codes       CodeSender
	Verifier    CodeVerifier

	// FederationEnabled routes every sign-in through the identity provider
	FederationEnabled bool
	// MaxFailedAttempts is reported in the lock message when the account has no threshold of its own
	MaxFailedAttempts int

	Now func() time.Time
}

func (s *ServiceDependencies) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// StepRegistry manages and orders login flow steps
type StepRegistry struct {
	steps []LoginFlowStep
}

// NewStepRegistry creates a new step registry
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: make([]LoginFlowStep, 0),
	}
}

// AddStep adds a step to the registry
func (r *StepRegistry) AddStep(step LoginFlowStep) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order
func (r *StepRegistry) GetOrderedSteps() []LoginFlowStep {
	orderedSteps := make([]LoginFlowStep, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.SliceStable(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})

	return orderedSteps
}

// FlowExecutor orchestrates the execution of login flow steps
type FlowExecutor struct {
	registry *StepRegistry
	services *ServiceDependencies
}

// NewFlowExecutor creates a new flow executor
func NewFlowExecutor(registry *StepRegistry, services *ServiceDependencies) *FlowExecutor {
	return &FlowExecutor{
		registry: registry,
		services: services,
	}
}

// Execute runs the steps in order until one of them reaches a decision.
// A flow that runs out of steps without a decision is rejected.
func (e *FlowExecutor) Execute(ctx context.Context, flowContext *FlowContext) Result {
	if flowContext.Result == nil {
		flowContext.Result = &Result{}
	}
	if flowContext.StepData == nil {
		flowContext.StepData = make(map[string]interface{})
	}
	flowContext.Services = e.services

	for _, step := range e.registry.GetOrderedSteps() {
		if step.ShouldSkip(ctx, flowContext) {
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			// Store failures never leak detail to the visitor
			slog.Error("Login flow step failed", "step", step.Name(), "err", err)
			return e.finish(flowContext, DecisionRejected, internalError(err))
		}

		if stepResult.Error != nil {
			return e.finish(flowContext, DecisionRejected, stepResult.Error)
		}

		for key, value := range stepResult.Data {
			flowContext.StepData[key] = value
		}

		if stepResult.EarlyReturn {
			return e.finish(flowContext, flowContext.Result.Decision, nil)
		}

		if !stepResult.Continue {
			break
		}
	}

	if flowContext.Result.Decision == "" {
		return e.finish(flowContext, DecisionRejected, internalError(nil))
	}
	return e.finish(flowContext, flowContext.Result.Decision, nil)
}

func (e *FlowExecutor) finish(flowContext *FlowContext, decision Decision, flowErr *Error) Result {
	result := *flowContext.Result
	result.Decision = decision
	result.Error = flowErr
	result.Context = flowContext.Attempt
	result.Account = flowContext.Account
	return result
}

// FlowBuilder provides a fluent interface for building login flows
type FlowBuilder struct {
	registry *StepRegistry
}

// NewFlowBuilder creates a new flow builder
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{
		registry: NewStepRegistry(),
	}
}

// AddStep adds a step to the flow
func (b *FlowBuilder) AddStep(step LoginFlowStep) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

// Build creates a flow executor with the configured steps
func (b *FlowBuilder) Build(services *ServiceDependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// Predefined step orders
const (
	OrderFederationMode       = 100
	OrderCredentialCheck      = 200
	OrderPendingAccount       = 300
	OrderInviteReconciliation = 400
	OrderFactorDecision       = 500
)
