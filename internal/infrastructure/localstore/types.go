package localstore

import (
	"time"

	"github.com/google/uuid"
)

// PatchItem is a provider metadata patch that could not be applied while the
// provider was unreachable and should be retried later.
type PatchItem struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Patch     map[string]string `json:"patch"`
	Reason    string            `json:"reason"`
	Priority  int               `json:"priority"`
	Retries   int               `json:"retries"`
	Timestamp time.Time         `json:"timestamp"`

	bucketKey []byte
}

func (i *PatchItem) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
