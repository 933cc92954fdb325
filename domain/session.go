package domain

import "time"

// Metadata keys carried inside session metadata. The hosted auth provider treats
// metadata as an opaque string map; these are the keys the gateway owns.
const (
	MetaRole    = "role"
	MetaOrgID   = "org_id"
	MetaOrgSlug = "org_slug"
	MetaVoice   = "voice"
)

// Session represents the authenticated identity as observed by the gateway:
// the provider's access token plus the user and the metadata patched onto it.
type Session struct {
	User         *User             `json:"user,omitempty"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"-"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// IsAuthenticated holds iff both a user and a token are present.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil && s.AccessToken != ""
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(reference)
}

// Meta returns a metadata value, preferring the session-level map and falling
// back to the user's metadata.
func (s *Session) Meta(key string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.Metadata[key]; ok && v != "" {
		return v
	}
	if s.User != nil {
		if v, ok := s.User.Metadata[key]; ok {
			return v
		}
	}
	return ""
}

// Role reports the role stored in metadata, empty when it was never synced.
func (s *Session) Role() string {
	return s.Meta(MetaRole)
}

// UserID returns the user identifier or empty when signed out.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// SessionSnapshot is the immutable view handed to consumers of the session store.
type SessionSnapshot struct {
	User            *User     `json:"user,omitempty"`
	AccessToken     string    `json:"-"`
	Loading         bool      `json:"loading"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Role            string    `json:"role,omitempty"`
	RefreshedAt     time.Time `json:"refreshed_at"`
}
