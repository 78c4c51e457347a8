package twofa

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-signin/pkg/errors"
)

var (
	ErrStoreUnavailable = apperrors.New(apperrors.ErrCodeUnavailable, "code store unavailable")
)

// CodeStore persists one outstanding code per (user, channel).
// Consume must be an atomic consume-if-unconsumed.
type CodeStore interface {
	// Issue generates a code for the slot, replacing any previous code
	Issue(ctx context.Context, userID uuid.UUID, channel Channel) (string, error)

	// ListActive returns the unconsumed, unexpired codes across all channels
	ListActive(ctx context.Context, userID uuid.UUID) ([]VerificationCode, error)

	// Consume marks the slot's code consumed. A non-empty code is only consumed
	// while the slot still holds that exact code, so a code replaced by a
	// reissue cannot be consumed. It returns false when there was nothing to
	// consume.
	Consume(ctx context.Context, userID uuid.UUID, channel Channel, code string) (bool, error)
}

// StoreOption configures a CodeStore implementation
type StoreOption func(*storeOptions)

type storeOptions struct {
	ttl      time.Duration
	now      func() time.Time
	generate func(now time.Time) (string, error)
}

func defaultStoreOptions() storeOptions {
	return storeOptions{
		ttl:      DefaultCodeTTL,
		now:      func() time.Time { return time.Now().UTC() },
		generate: GenerateCode,
	}
}

func buildStoreOptions(opts []StoreOption) storeOptions {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCodeTTL sets how long issued codes stay active
func WithCodeTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// WithGenerator overrides code generation, mostly for tests
func WithGenerator(generate func(now time.Time) (string, error)) StoreOption {
	return func(o *storeOptions) {
		o.generate = generate
	}
}
