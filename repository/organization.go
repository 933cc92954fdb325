package repository

import (
	"context"

	"github.com/sagebright/gateway/domain"
)

// OrganizationRepository looks up organization membership in the backing store.
type OrganizationRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Organization, error)
	GetByID(ctx context.Context, orgID string) (*domain.Organization, error)
}

// OrgSlugCache shortcuts id->slug resolution. Lookups must be idempotent:
// the same id always maps to the same slug across calls.
type OrgSlugCache interface {
	GetSlug(ctx context.Context, orgID string) (string, error)
	SetSlug(ctx context.Context, orgID, slug string) error
}
