package domain

import "time"

// Intent priorities used by callers. Any integer works; these are the
// conventional levels.
const (
	IntentPriorityLow      = 10
	IntentPriorityDefault  = 50
	IntentPriorityHigh     = 90
	IntentPriorityCritical = 100
)

// IntentMaxAge is the staleness threshold consumers should apply before
// honoring an intent. Expiry is consumer-checked, not enforced by the manager.
const IntentMaxAge = 10 * time.Minute

// RedirectIntent records a desired post-authentication destination so that
// crossing the login boundary preserves where the user was headed.
type RedirectIntent struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	Reason      string            `json:"reason"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Priority    int               `json:"priority"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Age reports how long ago the intent was captured.
func (i *RedirectIntent) Age(now time.Time) time.Duration {
	if i == nil {
		return 0
	}
	if now.IsZero() {
		now = time.Now()
	}
	return now.Sub(i.CreatedAt)
}

// IsStale reports whether consumers should ignore the intent.
func (i *RedirectIntent) IsStale(now time.Time) bool {
	return i != nil && i.Age(now) > IntentMaxAge
}

// Supersedes reports whether a new capture at the given priority may replace
// this intent. Equal priority replaces: last writer wins within a level.
func (i *RedirectIntent) Supersedes(newPriority int) bool {
	return i != nil && i.Priority > newPriority
}
