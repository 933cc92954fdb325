package provider

import (
	"context"

	"github.com/sagebright/gateway/domain"
)

// EventType classifies provider auth-change events.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is one auth state change published by the provider client.
type Event struct {
	Type    EventType
	Session *domain.Session
}

// Client is the opaque capability set consumed from the hosted auth provider.
// All calls are asynchronous network operations and may fail with a
// provider-specific error carrying a message string.
type Client interface {
	// GetSession returns the current session, refreshing it when the cached
	// token has expired. Returns domain.ErrSessionNotFound when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*domain.Session, error)
	// UpdateUserMetadata patches user metadata on the provider. Idempotent
	// for identical patches.
	UpdateUserMetadata(ctx context.Context, accessToken string, patch map[string]string) error
	// Events streams auth state changes for the subscriber's lifetime.
	Events() <-chan Event
	// Healthy reports whether the provider endpoint is reachable.
	Healthy(ctx context.Context) bool
}
