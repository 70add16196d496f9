package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements database.Store using PostgreSQL. Tenant-partitioned
// queries read the tenant from the request context, never from payloads.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
