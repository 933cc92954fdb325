package domain

import "time"

// VoiceDefault is the literal fallback value when no valid candidate exists.
const VoiceDefault = "default"

// voiceprints is the fixed set of assistant personality keys. Anything outside
// this set (other than VoiceDefault) is invalid and discarded before priority
// comparison.
var voiceprints = map[string]struct{}{
	"mirror":  {},
	"mentor":  {},
	"coach":   {},
	"analyst": {},
}

// IsValidVoice reports whether value is a known voiceprint key or the default.
func IsValidVoice(value string) bool {
	if value == VoiceDefault {
		return true
	}
	_, ok := voiceprints[value]
	return ok
}

// VoiceKeys returns the known voiceprint keys (excluding the default).
func VoiceKeys() []string {
	keys := make([]string, 0, len(voiceprints))
	for k := range voiceprints {
		keys = append(keys, k)
	}
	return keys
}

// VoiceSource identifies where a candidate came from. Sources carry a fixed
// priority; higher wins, ties broken by the most recent timestamp.
type VoiceSource string

const (
	VoiceSourceURL     VoiceSource = "url"
	VoiceSourceIntent  VoiceSource = "intent"
	VoiceSourceStorage VoiceSource = "storage"
	VoiceSourceDefault VoiceSource = "default"
)

// Priority returns the fixed rank of a source.
func (s VoiceSource) Priority() int {
	switch s {
	case VoiceSourceURL:
		return 100
	case VoiceSourceIntent:
		return 90
	case VoiceSourceStorage:
		return 80
	default:
		return 0
	}
}

// VoiceCandidate is one possible voice value before validation and selection.
type VoiceCandidate struct {
	Value     string      `json:"value"`
	Source    VoiceSource `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// Beats implements the comparator over {priority, timestamp} pairs: higher
// priority wins, equal priority goes to the newer candidate.
func (c VoiceCandidate) Beats(other VoiceCandidate) bool {
	if c.Source.Priority() != other.Source.Priority() {
		return c.Source.Priority() > other.Source.Priority()
	}
	return c.Timestamp.After(other.Timestamp)
}

// VoiceSelection is the resolved voice for the current navigation.
type VoiceSelection struct {
	Value      string      `json:"value"`
	Source     VoiceSource `json:"source"`
	Valid      bool        `json:"valid"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// DefaultVoiceSelection is the selection when no valid candidate is present.
func DefaultVoiceSelection(now time.Time) VoiceSelection {
	return VoiceSelection{
		Value:      VoiceDefault,
		Source:     VoiceSourceDefault,
		Valid:      true,
		ResolvedAt: now,
	}
}

// Equal ignores the resolution timestamp: a selection only counts as changed
// when its value, source, or validity differs. This is what keeps repeated
// resolution from emitting change notifications in a loop.
func (v VoiceSelection) Equal(other VoiceSelection) bool {
	return v.Value == other.Value && v.Source == other.Source && v.Valid == other.Valid
}

// VoiceTransition records one selection change for diagnostics. The persisted
// history is capped to the most recent entries.
type VoiceTransition struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Source    VoiceSource `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// VoiceTransitionCap bounds the persisted transition history.
const VoiceTransitionCap = 3
