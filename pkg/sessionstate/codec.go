package sessionstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/simple-signin/pkg/loginflow"
)

const DefaultAttemptExpiry = 15 * time.Minute

var ErrInvalidAttempt = errors.New("invalid attempt token")

type attemptClaims struct {
	jwt.RegisteredClaims
	Attempt loginflow.AttemptContext `json:"attempt"`
}

type CodecOption func(*Codec)

// WithExpiry sets how long an encoded attempt stays valid
func WithExpiry(expiry time.Duration) CodecOption {
	return func(c *Codec) {
		if expiry > 0 {
			c.expiry = expiry
		}
	}
}

// WithIssuer sets the issuer written into and required from tokens
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs an AttemptContext into an HS256 token and back
type Codec struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

func NewCodec(secret string, opts ...CodecOption) *Codec {
	c := &Codec{
		secret: []byte(secret),
		expiry: DefaultAttemptExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs the attempt
func (c *Codec) Encode(attempt loginflow.AttemptContext) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.expiry)
	claims := attemptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Attempt: attempt,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign attempt: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies the signature, expiry and issuer and returns the attempt
func (c *Codec) Decode(token string) (loginflow.AttemptContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims attemptClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return loginflow.AttemptContext{}, fmt.Errorf("%w: %v", ErrInvalidAttempt, err)
	}
	return claims.Attempt, nil
}
