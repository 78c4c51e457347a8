package config

import (
	"errors"
	"time"
)

// SignInConfig contains the sign-in decision settings
type SignInConfig struct {
	// MaxFailedAttempts is the default lock threshold for new accounts
	MaxFailedAttempts int `env:"LOGIN_MAX_FAILED_ATTEMPTS" env-default:"10"`

	// CodeTTL is how long an issued one-time code stays active (ISO 8601 or Go format)
	CodeTTL string `env:"TWOFA_CODE_TTL" env-default:"PT10M"`

	// FederationEnabled routes all sign-ins through the OIDC provider
	FederationEnabled bool `env:"FEDERATION_ENABLED" env-default:"false"`

	// FederatedTimeout bounds the token exchange with the identity provider
	FederatedTimeout string `env:"FEDERATION_TIMEOUT" env-default:"10s"`
}

// Validate checks the settings before services are built
func (c SignInConfig) Validate() error {
	if c.MaxFailedAttempts < 1 {
		return errors.New("max failed attempts must be at least 1")
	}
	if _, err := ParseDuration(c.CodeTTL); err != nil {
		return errors.New("invalid code ttl: " + err.Error())
	}
	if _, err := ParseDuration(c.FederatedTimeout); err != nil {
		return errors.New("invalid federation timeout: " + err.Error())
	}
	return nil
}

// ParseCodeTTL parses CodeTTL as a time.Duration
func (c SignInConfig) ParseCodeTTL() (time.Duration, error) {
	return ParseDuration(c.CodeTTL)
}

// ParseFederatedTimeout parses FederatedTimeout as a time.Duration
func (c SignInConfig) ParseFederatedTimeout() (time.Duration, error) {
	return ParseDuration(c.FederatedTimeout)
}

// OIDCConfig holds the relying-party settings for the identity provider
type OIDCConfig struct {
	IssuerURL    string   `env:"OIDC_ISSUER_URL"`
	ClientID     string   `env:"OIDC_CLIENT_ID"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string   `env:"OIDC_REDIRECT_URL" env-default:"http://localhost:4000/oidc/callback"`
	Scopes       []string `env:"OIDC_SCOPES" env-default:"openid,email,profile"`
}

// IsConfigured returns true if the provider can be contacted
func (o OIDCConfig) IsConfigured() bool {
	return o.IssuerURL != "" && o.ClientID != ""
}

// JWTConfig holds the secrets for the session and attempt cookies
type JWTConfig struct {
	Secret         string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	CookieHttpOnly bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool   `env:"COOKIE_SECURE" env-default:"true"`
	SessionExpiry  string `env:"SESSION_EXPIRY" env-default:"PT8H"`
	AttemptExpiry  string `env:"ATTEMPT_EXPIRY" env-default:"PT15M"`
	Issuer         string `env:"JWT_ISSUER" env-default:"simple-signin"`
}

// ParseSessionExpiry parses SessionExpiry as a time.Duration
func (j JWTConfig) ParseSessionExpiry() (time.Duration, error) {
	return ParseDuration(j.SessionExpiry)
}

// ParseAttemptExpiry parses AttemptExpiry as a time.Duration
func (j JWTConfig) ParseAttemptExpiry() (time.Duration, error) {
	return ParseDuration(j.AttemptExpiry)
}
