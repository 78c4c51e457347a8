package signup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryInviteStore implements InviteStore using in-memory storage
type InMemoryInviteStore struct {
	mu      sync.Mutex
	invites map[uuid.UUID]Invite
	now     func() time.Time
}

func NewInMemoryInviteStore() *InMemoryInviteStore {
	return &InMemoryInviteStore{
		invites: make(map[uuid.UUID]Invite),
		now:     time.Now,
	}
}

// Create implements InviteStore
func (s *InMemoryInviteStore) Create(ctx context.Context, email string, invitedBy *uuid.UUID) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite := Invite{
		ID:           uuid.New(),
		EmailAddress: email,
		InvitedBy:    invitedBy,
		CreatedAt:    s.now(),
	}
	s.invites[invite.ID] = invite
	return invite, nil
}

// Get implements InviteStore
func (s *InMemoryInviteStore) Get(ctx context.Context, id uuid.UUID) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[id]
	if !ok {
		return Invite{}, ErrInviteNotFound
	}
	return invite, nil
}

// MarkAccepted implements InviteStore
func (s *InMemoryInviteStore) MarkAccepted(ctx context.Context, id uuid.UUID, userID uuid.UUID) (Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[id]
	if !ok {
		return Invite{}, ErrInviteNotFound
	}
	if invite.AcceptedBy == nil {
		now := s.now()
		acceptor := userID
		invite.AcceptedBy = &acceptor
		invite.AcceptedAt = &now
		s.invites[id] = invite
	}
	return invite, nil
}
