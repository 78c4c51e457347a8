package externalprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCClient implements FederatedIdentityClient with an authorization code
// exchange followed by ID token verification
type OIDCClient struct {
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCClient discovers the provider endpoints from the issuer
func NewOIDCClient(ctx context.Context, config ProviderConfig) (*OIDCClient, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return NewOIDCClientWithVerifier(
		&oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       config.GetDefaultScopes(),
		},
		provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
	), nil
}

// NewOIDCClientWithVerifier builds a client from explicit parts, skipping discovery
func NewOIDCClientWithVerifier(oauthConfig *oauth2.Config, verifier *oidc.IDTokenVerifier) *OIDCClient {
	return &OIDCClient{
		oauth2:   oauthConfig,
		verifier: verifier,
	}
}

// AuthCodeURL returns the provider URL the browser is redirected to
func (c *OIDCClient) AuthCodeURL(state, nonce string) string {
	return c.oauth2.AuthCodeURL(state, oidc.Nonce(nonce))
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange implements FederatedIdentityClient
func (c *OIDCClient) Exchange(ctx context.Context, assertion Assertion) (Identity, error) {
	if assertion.Code == "" {
		return Identity{}, errors.New("missing authorization code")
	}

	token, err := c.oauth2.Exchange(ctx, assertion.Code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, errors.New("token response has no id_token")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if assertion.Nonce != "" && idToken.Nonce != assertion.Nonce {
		return Identity{}, errors.New("id_token nonce mismatch")
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("decode id_token claims: %w", err)
	}

	return Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
