// Package loginflow orchestrates sign-in attempts for simple-signin.
//
// An attempt is a run of ordered steps over a FlowContext. Each step either
// lets the attempt continue or settles it with a Decision:
//
//  1. Federation mode - refuse passwords when federation is on, or resolve
//     the identity provider's assertion to an account
//  2. Credential check - unknown email, expired password, locked account,
//     wrong password
//  3. Pending account - send unverified accounts back to verification
//  4. Invite reconciliation - accept the visitor's invite or drop it
//  5. Factor decision - record the sign-in, then send an SMS or email code
//     or grant the session
//
// The service keeps no per-visitor state. Callers load the AttemptContext,
// pass it in, and persist Result.Context afterwards:
//
//	flow := loginflow.NewLoginFlowService(loginflow.ServiceDependencies{
//		Credentials: login.NewCredentialValidator(users),
//		Users:       users,
//		Invitations: signup.NewInvitationService(invites),
//		Codes:       twofa.NewCodeService(codes, notifications),
//		Verifier:    twofa.NewVerifier(codes),
//	})
//
//	result := flow.ProcessLogin(ctx, loginflow.Request{
//		EmailAddress: "user@example.com",
//		Password:     "password123",
//	}, attempt)
//
//	switch result.Decision {
//	case loginflow.DecisionSecondFactorPending:
//		// ask for the code, then call ProcessSecondFactor
//	case loginflow.DecisionGranted:
//		// result.Context.Session is set
//	}
package loginflow
