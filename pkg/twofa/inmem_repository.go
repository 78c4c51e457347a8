package twofa

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type slotKey struct {
	userID  uuid.UUID
	channel Channel
}

// InMemoryCodeStore implements CodeStore using in-memory storage
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[slotKey]VerificationCode
	opts  storeOptions
}

// NewInMemoryCodeStore creates a new in-memory code store
func NewInMemoryCodeStore(opts ...StoreOption) *InMemoryCodeStore {
	return &InMemoryCodeStore{
		codes: make(map[slotKey]VerificationCode),
		opts:  buildStoreOptions(opts),
	}
}

// Issue implements CodeStore
func (s *InMemoryCodeStore) Issue(ctx context.Context, userID uuid.UUID, channel Channel) (string, error) {
	if err := ValidateChannel(channel); err != nil {
		return "", err
	}

	now := s.opts.now()
	code, err := s.opts.generate(now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[slotKey{userID, channel}] = VerificationCode{
		UserID:    userID,
		Channel:   channel,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.ttl),
	}
	return code, nil
}

// ListActive implements CodeStore
func (s *InMemoryCodeStore) ListActive(ctx context.Context, userID uuid.UUID) ([]VerificationCode, error) {
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	active := []VerificationCode{}
	for _, channel := range Channels {
		if c, ok := s.codes[slotKey{userID, channel}]; ok && c.Active(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// Consume implements CodeStore
func (s *InMemoryCodeStore) Consume(ctx context.Context, userID uuid.UUID, channel Channel, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{userID, channel}
	c, ok := s.codes[key]
	if !ok || !c.Active(now) || (code != "" && c.Code != code) {
		return false, nil
	}
	c.Consumed = true
	s.codes[key] = c
	return true, nil
}
