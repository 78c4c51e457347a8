package signup

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig contains configuration for creating an invite store
type RepositoryConfig struct {
	Pool *pgxpool.Pool
}

// NewInviteStore creates an invite store based on the persistence type
func NewInviteStore(persistenceType string, config RepositoryConfig) (InviteStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres invite store")
		}
		return NewPostgresInviteStore(config.Pool), nil
	case "inmem", "memory":
		return NewInMemoryInviteStore(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
