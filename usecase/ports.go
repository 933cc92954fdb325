package usecase

import "context"

// NotifyLevel classifies a user-visible notification.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// Notifier surfaces recoverable failures to the user without interrupting the
// flow that hit them. Implementations must never block or fail.
type Notifier interface {
	Notify(level NotifyLevel, code, message string)
}

// MetadataPatcher writes metadata back to the auth provider on behalf of a
// resolver. Implementations may buffer the patch for later delivery when the
// provider is unreachable; callers treat a buffered write as success.
type MetadataPatcher interface {
	PatchMetadata(ctx context.Context, accessToken, userID string, patch map[string]string, reason string) error
}
