package twofa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix   = "signin:code"
	maxWatchRetries = 4
)

// RedisCodeStore implements CodeStore on Redis hashes. Consumption runs in a
// WATCH/MULTI transaction so only one caller can flip the consumed flag.
type RedisCodeStore struct {
	redis *redis.Client
	opts  storeOptions
}

// NewRedisCodeStore creates a new Redis code store
func NewRedisCodeStore(client *redis.Client, opts ...StoreOption) *RedisCodeStore {
	return &RedisCodeStore{
		redis: client,
		opts:  buildStoreOptions(opts),
	}
}

func (s *RedisCodeStore) key(userID uuid.UUID, channel Channel) string {
	return codeKeyPrefix + ":" + userID.String() + ":" + string(channel)
}

// Issue implements CodeStore
func (s *RedisCodeStore) Issue(ctx context.Context, userID uuid.UUID, channel Channel) (string, error) {
	if err := ValidateChannel(channel); err != nil {
		return "", err
	}

	now := s.opts.now()
	code, err := s.opts.generate(now)
	if err != nil {
		return "", err
	}

	key := s.key(userID, channel)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", code,
			"issued_at", now.UnixNano(),
			"expires_at", now.Add(s.opts.ttl).UnixNano(),
			"consumed", "0",
		)
		pipe.PExpire(ctx, key, s.opts.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return code, nil
}

// ListActive implements CodeStore
func (s *RedisCodeStore) ListActive(ctx context.Context, userID uuid.UUID) ([]VerificationCode, error) {
	now := s.opts.now()
	active := []VerificationCode{}

	for _, channel := range Channels {
		fields, err := s.redis.HGetAll(ctx, s.key(userID, channel)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if len(fields) == 0 {
			continue
		}
		c, err := decodeCode(userID, channel, fields)
		if err != nil {
			return nil, err
		}
		if c.Active(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// Consume implements CodeStore
func (s *RedisCodeStore) Consume(ctx context.Context, userID uuid.UUID, channel Channel, code string) (bool, error) {
	key := s.key(userID, channel)

	for i := 0; i < maxWatchRetries; i++ {
		consumed := false

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return nil
			}
			c, err := decodeCode(userID, channel, fields)
			if err != nil {
				return err
			}
			if !c.Active(s.opts.now()) || (code != "" && c.Code != code) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, "consumed", "1")
				return nil
			})
			if err != nil {
				return err
			}
			consumed = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return consumed, nil
	}

	// Every retry lost the race to another consumer
	return false, nil
}

func decodeCode(userID uuid.UUID, channel Channel, fields map[string]string) (VerificationCode, error) {
	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return VerificationCode{}, fmt.Errorf("decode issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return VerificationCode{}, fmt.Errorf("decode expires_at: %w", err)
	}
	return VerificationCode{
		UserID:    userID,
		Channel:   channel,
		Code:      fields["code"],
		IssuedAt:  time.Unix(0, issuedAt).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
		Consumed:  fields["consumed"] == "1",
	}, nil
}
