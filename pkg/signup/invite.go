package signup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteMismatch        = errors.New("invite belongs to another email address")
	ErrInviteAcceptedByOther = errors.New("invite already accepted by another account")
)

// InviteToken is the invite a visitor carries into sign-in
type InviteToken struct {
	ID           uuid.UUID `json:"id"`
	EmailAddress string    `json:"email_address"`
	Accepted     bool      `json:"accepted"`
}

// Invite is the stored record behind an InviteToken
type Invite struct {
	ID           uuid.UUID
	EmailAddress string
	InvitedBy    *uuid.UUID
	AcceptedBy   *uuid.UUID
	AcceptedAt   *time.Time
	CreatedAt    time.Time
}

func (i Invite) Token() InviteToken {
	return InviteToken{
		ID:           i.ID,
		EmailAddress: i.EmailAddress,
		Accepted:     i.AcceptedBy != nil,
	}
}

// InviteStore persists invites
type InviteStore interface {
	Create(ctx context.Context, email string, invitedBy *uuid.UUID) (Invite, error)
	Get(ctx context.Context, id uuid.UUID) (Invite, error)
	// MarkAccepted records userID as the acceptor if nobody has accepted yet.
	// The returned invite reflects the stored state either way.
	MarkAccepted(ctx context.Context, id uuid.UUID, userID uuid.UUID) (Invite, error)
}
