package domain

import "time"

// ReadinessState enumerates the aggregator's states.
type ReadinessState string

const (
	ReadinessInitializing ReadinessState = "initializing"
	ReadinessPartial      ReadinessState = "partial"
	ReadinessReady        ReadinessState = "ready"
)

// Blocker strings, one per readiness dimension. The blocker list enumerates
// every failing dimension by name so operators can tell which signal is missing.
const (
	BlockerSession = "session not ready"
	BlockerOrg     = "organization not resolved"
	BlockerVoice   = "voice not resolved"
)

// ReadinessSnapshot is a pure function of the current session, organization,
// and voice signals; it is recomputed on every input change and never persisted.
type ReadinessSnapshot struct {
	State         ReadinessState `json:"state"`
	SessionReady  bool           `json:"session_ready"`
	OrgReady      bool           `json:"org_ready"`
	VoiceReady    bool           `json:"voice_ready"`
	IsReady       bool           `json:"is_ready"`
	Blockers      []string       `json:"blockers,omitempty"`
	FirstReadyAt  time.Time      `json:"first_ready_at,omitzero"`
	TransitionSeq uint64         `json:"transition_seq"`
}
