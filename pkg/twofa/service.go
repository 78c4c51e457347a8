package twofa

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-signin/pkg/errors"
	"github.com/tendant/simple-signin/pkg/notification"
)

var ErrNoDeliveryAddress = errors.New("no delivery address for channel")

// CodeNotifier delivers rendered notices. *notification.NotificationManager implements it.
type CodeNotifier interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

// Recipient is who a code is issued to and where it is delivered
type Recipient struct {
	UserID       uuid.UUID
	Name         string
	EmailAddress string
	MobileNumber *string
}

type Option func(*CodeService)

// WithCodeExpiry sets the expiry shown in notices. It should match the store TTL.
func WithCodeExpiry(ttl time.Duration) Option {
	return func(s *CodeService) {
		s.expiry = ttl
	}
}

// CodeService issues codes and delivers them
type CodeService struct {
	store    CodeStore
	notifier CodeNotifier
	expiry   time.Duration
}

func NewCodeService(store CodeStore, notifier CodeNotifier, opts ...Option) *CodeService {
	s := &CodeService{
		store:    store,
		notifier: notifier,
		expiry:   DefaultCodeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendCode issues a fresh code on the channel and sends it to the recipient
func (s *CodeService) SendCode(ctx context.Context, recipient Recipient, channel Channel) error {
	var to string
	var noticeType notification.NoticeType
	switch channel {
	case TWO_FACTOR_TYPE_SMS:
		if recipient.MobileNumber == nil || *recipient.MobileNumber == "" {
			return fmt.Errorf("%w: %s", ErrNoDeliveryAddress, channel)
		}
		to = *recipient.MobileNumber
		noticeType = notification.TwofaCodeNoticeSms
	case TWO_FACTOR_TYPE_EMAIL:
		if recipient.EmailAddress == "" {
			return fmt.Errorf("%w: %s", ErrNoDeliveryAddress, channel)
		}
		to = recipient.EmailAddress
		noticeType = notification.TwofaCodeNoticeEmail
	default:
		return ValidateChannel(channel)
	}

	code, err := s.store.Issue(ctx, recipient.UserID, channel)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}

	err = s.notifier.Send(noticeType, notification.NotificationData{
		To: to,
		Data: map[string]string{
			"TwofaPasscode": code,
			"Name":          recipient.Name,
			"ExpiresIn":     fmt.Sprintf("%d minutes", int(s.expiry.Minutes())),
			"UserId":        recipient.UserID.String(),
		},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "deliver code")
	}

	slog.Info("Sign-in code sent", "user_id", recipient.UserID, "channel", channel)
	return nil
}

// Verdict is the outcome of a code verification
type Verdict int

const (
	Rejected Verdict = iota
	Accepted
)

func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "rejected"
}

// VerifyResult carries the verdict and the channel whose code matched
type VerifyResult struct {
	Verdict Verdict
	Channel Channel
	// ConsumptionFailed is set when the code matched but another request
	// consumed it first
	ConsumptionFailed bool
}

// Verifier checks submitted codes against the CodeStore
type Verifier struct {
	store CodeStore
}

func NewVerifier(store CodeStore) *Verifier {
	return &Verifier{store: store}
}

// Verify matches the code against the user's active codes on every channel.
// On a match the email and sms slots are both consumed, and the result is
// Accepted only if the matched code itself was consumed. A reissue between
// the listing and the consume leaves the fresh code active.
func (v *Verifier) Verify(ctx context.Context, userID uuid.UUID, code string) (VerifyResult, error) {
	active, err := v.store.ListActive(ctx, userID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("list active codes: %w", err)
	}

	var matched *VerificationCode
	for i := range active {
		if code != "" && subtle.ConstantTimeCompare([]byte(active[i].Code), []byte(code)) == 1 {
			matched = &active[i]
			break
		}
	}
	if matched == nil {
		slog.Info("Sign-in code rejected", "user_id", userID, "active_codes", len(active))
		return VerifyResult{Verdict: Rejected}, nil
	}

	ok, err := v.store.Consume(ctx, userID, matched.Channel, matched.Code)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("consume %s code: %w", matched.Channel, err)
	}
	if !ok {
		slog.Warn("Sign-in code already consumed", "user_id", userID, "channel", matched.Channel)
		return VerifyResult{Verdict: Rejected, Channel: matched.Channel, ConsumptionFailed: true}, nil
	}

	// Close out the remaining channels too
	for _, channel := range Channels {
		if channel == matched.Channel {
			continue
		}
		if _, err := v.store.Consume(ctx, userID, channel, ""); err != nil {
			return VerifyResult{}, fmt.Errorf("consume %s code: %w", channel, err)
		}
	}

	return VerifyResult{Verdict: Accepted, Channel: matched.Channel}, nil
}
