package externalprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrAssertionRejected is returned for any assertion that cannot be turned
// into a verified email. Provider detail is logged, never returned.
var ErrAssertionRejected = errors.New("federated assertion rejected")

// Assertion is what the identity provider sent back to the callback
type Assertion struct {
	Code  string
	State string
	Nonce string
}

// Identity represents normalized user information from the identity provider
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// FederatedIdentityClient exchanges an assertion for a verified identity
type FederatedIdentityClient interface {
	Exchange(ctx context.Context, assertion Assertion) (Identity, error)
}

// ProviderConfig is the relying-party configuration of the identity provider
type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// ValidateConfig validates the provider configuration
func (p ProviderConfig) ValidateConfig() error {
	if p.IssuerURL == "" {
		return fmt.Errorf("issuer URL is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if p.RedirectURL == "" {
		return fmt.Errorf("redirect URL is required")
	}
	return nil
}

// GetDefaultScopes returns the configured scopes or the OIDC defaults
func (p ProviderConfig) GetDefaultScopes() []string {
	if len(p.Scopes) > 0 {
		return p.Scopes
	}
	return []string{"openid", "profile", "email"}
}

var titleCaser = cases.Title(language.Und)

// DeriveDisplayName builds a display name from the local part of an email,
// e.g. "jane.doe@example.com" becomes "Jane Doe".
func DeriveDisplayName(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	return titleCaser.String(strings.ReplaceAll(local, ".", " "))
}
