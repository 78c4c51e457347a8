package twofa

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/xlzd/gotp"
)

// Channel is the delivery channel of a one-time code
type Channel string

const (
	TWO_FACTOR_TYPE_EMAIL Channel = "email"
	TWO_FACTOR_TYPE_SMS   Channel = "sms"
)

// Channels lists every channel a user can hold a code on
var Channels = []Channel{TWO_FACTOR_TYPE_EMAIL, TWO_FACTOR_TYPE_SMS}

const (
	SECRET_LENGTH = 32
	PERIOD        = 300
	SKEW          = 1

	DefaultCodeTTL = 10 * time.Minute
)

// VerificationCode is a one-time code held for a (user, channel) slot
type VerificationCode struct {
	UserID    uuid.UUID
	Channel   Channel
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Active reports whether the code can still be used at the given time
func (c VerificationCode) Active(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

func ValidateChannel(channel Channel) error {
	switch channel {
	case TWO_FACTOR_TYPE_EMAIL, TWO_FACTOR_TYPE_SMS:
		return nil
	default:
		return fmt.Errorf("invalid 2FA channel: %s, must be one of: %s, %s",
			channel, TWO_FACTOR_TYPE_EMAIL, TWO_FACTOR_TYPE_SMS)
	}
}

// GenerateCode derives a six digit passcode from a fresh random secret
func GenerateCode(now time.Time) (string, error) {
	secret := gotp.RandomSecret(SECRET_LENGTH)
	code, err := totp.GenerateCodeCustom(secret, now.UTC(), totp.ValidateOpts{
		Period:    PERIOD,
		Skew:      SKEW,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to generate 2fa passcode", "error", err)
		return "", err
	}
	return code, nil
}
