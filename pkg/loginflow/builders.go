package loginflow

// FlowType names the entry points of the sign-in flow
type FlowType string

const (
	FlowTypePassword  FlowType = "password"
	FlowTypeFederated FlowType = "federated"
)

// LoginFlowBuilders provides pre-configured flow builders for each entry point
type LoginFlowBuilders struct {
	services *ServiceDependencies
}

// NewLoginFlowBuilders creates a new instance of LoginFlowBuilders
func NewLoginFlowBuilders(services *ServiceDependencies) *LoginFlowBuilders {
	return &LoginFlowBuilders{
		services: services,
	}
}

// BuildPasswordLoginFlow creates the email and password flow
func (b *LoginFlowBuilders) BuildPasswordLoginFlow() *FlowExecutor {
	return NewFlowBuilder().
		AddStep(NewFederationModeStep()).
		AddStep(NewCredentialCheckStep()).
		AddStep(NewPendingAccountStep()).
		AddStep(NewInviteReconciliationStep()).
		AddStep(NewFactorDecisionStep()).
		Build(b.services)
}

// BuildFederatedLoginFlow creates the identity provider callback flow.
// Credential, pending and invite steps skip themselves once the account is federated.
func (b *LoginFlowBuilders) BuildFederatedLoginFlow() *FlowExecutor {
	return NewFlowBuilder().
		AddStep(NewFederationModeStep()).
		AddStep(NewFactorDecisionStep()).
		Build(b.services)
}

// BuildFlowByType creates a flow executor based on the specified flow type
func (b *LoginFlowBuilders) BuildFlowByType(flowType FlowType) *FlowExecutor {
	switch flowType {
	case FlowTypeFederated:
		return b.BuildFederatedLoginFlow()
	default:
		return b.BuildPasswordLoginFlow()
	}
}
