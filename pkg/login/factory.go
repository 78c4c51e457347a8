package login

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig contains configuration for creating a user store
type RepositoryConfig struct {
	// Pool is required for PostgreSQL stores
	Pool *pgxpool.Pool
}

// NewUserStore creates a user store based on the persistence type
func NewUserStore(persistenceType string, config RepositoryConfig, opts ...StoreOption) (UserStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres user store")
		}
		return NewPostgresUserStore(config.Pool, opts...), nil
	case "inmem", "memory":
		return NewInMemoryUserStore(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
