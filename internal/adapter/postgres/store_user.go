package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain/user"
)

const userCols = `id, tenant_id, user_key, name, email, phone, company, work_type, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.TenantID, &u.UserKey, &u.Name, &u.Email, &u.Phone,
		&u.Company, &u.WorkType, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUserByKey(ctx context.Context, userKey string) (*user.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE tenant_id = $1 AND user_key = $2`,
		tenantFromCtx(ctx), userKey)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user by key")
	}
	return &u, nil
}

// UpsertUser creates the user on first contact and refreshes profile
// fields on subsequent requests. Empty request fields never blank out
// stored values.
func (s *Store) UpsertUser(ctx context.Context, req user.UpsertRequest) (*user.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (tenant_id, user_key, name, email, phone, company, work_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, user_key) DO UPDATE SET
		     name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		     email      = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		     phone      = COALESCE(NULLIF(EXCLUDED.phone, ''), users.phone),
		     company    = COALESCE(NULLIF(EXCLUDED.company, ''), users.company),
		     work_type  = COALESCE(NULLIF(EXCLUDED.work_type, ''), users.work_type),
		     updated_at = now()
		 RETURNING `+userCols,
		tenantFromCtx(ctx), req.UserKey, req.Name, req.Email, req.Phone, req.Company, string(req.WorkType))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}
