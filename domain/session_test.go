package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_IsAuthenticated(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.IsAuthenticated())
	assert.False(t, (&Session{}).IsAuthenticated())
	assert.False(t, (&Session{User: &User{ID: "u1"}}).IsAuthenticated())
	assert.False(t, (&Session{AccessToken: "tok"}).IsAuthenticated())
	assert.True(t, (&Session{User: &User{ID: "u1"}, AccessToken: "tok"}).IsAuthenticated())
}

func TestSession_MetaFallsBackToUserMetadata(t *testing.T) {
	sess := &Session{
		User:     &User{ID: "u1", Metadata: map[string]string{MetaRole: "admin"}},
		Metadata: map[string]string{MetaOrgID: "org-1"},
	}
	assert.Equal(t, "org-1", sess.Meta(MetaOrgID))
	assert.Equal(t, "admin", sess.Meta(MetaRole))
	assert.Empty(t, sess.Meta(MetaVoice))

	var nilSession *Session
	assert.Empty(t, nilSession.Meta(MetaRole))
	assert.Empty(t, nilSession.UserID())
}

func TestRedirectIntent_Supersedes(t *testing.T) {
	var none *RedirectIntent
	assert.False(t, none.Supersedes(IntentPriorityLow))

	active := &RedirectIntent{Priority: IntentPriorityHigh}
	assert.True(t, active.Supersedes(IntentPriorityDefault))
	assert.False(t, active.Supersedes(IntentPriorityHigh))
	assert.False(t, active.Supersedes(IntentPriorityCritical))
}

func TestRedirectIntent_Staleness(t *testing.T) {
	now := time.Now()
	fresh := &RedirectIntent{CreatedAt: now.Add(-time.Minute)}
	stale := &RedirectIntent{CreatedAt: now.Add(-IntentMaxAge - time.Second)}

	assert.False(t, fresh.IsStale(now))
	assert.True(t, stale.IsStale(now))

	var none *RedirectIntent
	assert.False(t, none.IsStale(now))
}

func TestVoiceCandidate_Beats(t *testing.T) {
	now := time.Now()
	url := VoiceCandidate{Value: "mirror", Source: VoiceSourceURL, Timestamp: now}
	intent := VoiceCandidate{Value: "mentor", Source: VoiceSourceIntent, Timestamp: now.Add(time.Minute)}
	storage := VoiceCandidate{Value: "coach", Source: VoiceSourceStorage, Timestamp: now}

	assert.True(t, url.Beats(intent))
	assert.True(t, intent.Beats(storage))
	assert.False(t, storage.Beats(url))

	older := VoiceCandidate{Value: "coach", Source: VoiceSourceStorage, Timestamp: now.Add(-time.Hour)}
	assert.True(t, storage.Beats(older))
}

func TestIsValidVoice(t *testing.T) {
	assert.True(t, IsValidVoice(VoiceDefault))
	assert.True(t, IsValidVoice("mirror"))
	assert.True(t, IsValidVoice("analyst"))
	assert.False(t, IsValidVoice("pirate"))
	assert.False(t, IsValidVoice(""))
}
