package domain

import "time"

// User represents an authenticated identity reported by the auth provider.
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// HasRole reports whether role metadata is present, the signal that decides
// whether a metadata repair pass is needed.
func (u *User) HasRole() bool {
	return u != nil && u.Metadata[MetaRole] != ""
}
