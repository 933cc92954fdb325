package repository

import "context"

// RoleRepository reads the authoritative role for a user from the backing
// store. Reads are idempotent and safely retryable.
type RoleRepository interface {
	GetRole(ctx context.Context, userID string) (string, error)
}
