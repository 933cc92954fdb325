package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository instantiates the authoritative role lookup used by
// metadata repair.
func NewRoleRepository(pool *pgxpool.Pool) repository.RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetRole(ctx context.Context, userID string) (string, error) {
	const query = `
		SELECT role
		FROM user_roles
		WHERE user_id = $1
	`
	row := r.pool.QueryRow(ctx, query, userID)

	var role string
	if err := row.Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrRoleNotFound
		}
		return "", err
	}
	return role, nil
}
