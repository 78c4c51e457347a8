package signup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-signin/pkg/login"
)

// InvitationService accepts invites on behalf of signed-in accounts
type InvitationService struct {
	store InviteStore
}

func NewInvitationService(store InviteStore) *InvitationService {
	return &InvitationService{store: store}
}

// Accept marks the invite accepted by account. Accepting an invite the same
// account already accepted is a no-op. The invite email must match the
// account email, ignoring case.
func (s *InvitationService) Accept(ctx context.Context, token InviteToken, account login.Account) (InviteToken, error) {
	if !login.SameEmail(token.EmailAddress, account.EmailAddress) {
		return token, ErrInviteMismatch
	}

	invite, err := s.store.MarkAccepted(ctx, token.ID, account.ID)
	if err != nil {
		return token, fmt.Errorf("mark invite accepted: %w", err)
	}
	if invite.AcceptedBy == nil || *invite.AcceptedBy != account.ID {
		slog.Warn("Invite already accepted by another account", "invite_id", invite.ID, "user_id", account.ID)
		return token, ErrInviteAcceptedByOther
	}

	slog.Info("Invite accepted", "invite_id", invite.ID, "user_id", account.ID)
	return invite.Token(), nil
}
