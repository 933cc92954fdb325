package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

type orgRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository instantiates a Postgres-backed membership lookup.
func NewOrganizationRepository(pool *pgxpool.Pool) repository.OrganizationRepository {
	return &orgRepository{pool: pool}
}

func (r *orgRepository) GetByUserID(ctx context.Context, userID string) (*domain.Organization, error) {
	const query = `
		SELECT o.id, o.slug, o.name
		FROM organizations o
		JOIN org_members m ON m.org_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.joined_at ASC
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, userID)

	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Slug, &org.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *orgRepository) GetByID(ctx context.Context, orgID string) (*domain.Organization, error) {
	const query = `
		SELECT id, slug, name
		FROM organizations
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, orgID)

	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Slug, &org.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}
