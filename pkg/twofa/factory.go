package twofa

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating a code store
type RepositoryConfig struct {
	// Pool is required for PostgreSQL stores
	Pool *pgxpool.Pool
	// Redis is required for Redis stores
	Redis *redis.Client
}

// NewCodeStore creates a code store based on the persistence type
func NewCodeStore(persistenceType string, config RepositoryConfig, opts ...StoreOption) (CodeStore, error) {
	switch persistenceType {
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis code store")
		}
		return NewRedisCodeStore(config.Redis, opts...), nil
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres code store")
		}
		return NewPostgresCodeStore(config.Pool, opts...), nil
	case "inmem", "memory":
		return NewInMemoryCodeStore(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: redis, postgres, inmem)", persistenceType)
	}
}
