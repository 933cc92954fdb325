package voice

import (
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memKV) GetJSON(key string, out any) (bool, error) {
	raw, ok, err := m.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal([]byte(raw), out)
}

func (m *memKV) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(key, string(raw))
}

func query(voice string) url.Values {
	q := url.Values{}
	if voice != "" {
		q.Set(QueryParam, voice)
	}
	return q
}

func TestResolve_DefaultWhenNoCandidates(t *testing.T) {
	resolver := NewResolver(newMemKV(), nil)

	sel := resolver.Resolve(query(""), nil)
	assert.Equal(t, domain.VoiceDefault, sel.Value)
	assert.Equal(t, domain.VoiceSourceDefault, sel.Source)
	assert.True(t, sel.Valid)
}

func TestResolve_URLParamWinsAndSurvivesReload(t *testing.T) {
	kv := newMemKV()
	resolver := NewResolver(kv, nil)

	sel := resolver.Resolve(query("mirror"), nil)
	assert.Equal(t, "mirror", sel.Value)
	assert.Equal(t, domain.VoiceSourceURL, sel.Source)

	// Next navigation carries no parameter; the persisted value takes over.
	sel = resolver.Resolve(query(""), nil)
	assert.Equal(t, "mirror", sel.Value)
	assert.Equal(t, domain.VoiceSourceStorage, sel.Source)
}

func TestResolve_InvalidCandidateDiscarded(t *testing.T) {
	kv := newMemKV()
	resolver := NewResolver(kv, nil)

	sel := resolver.Resolve(query("pirate"), nil)
	assert.Equal(t, domain.VoiceDefault, sel.Value)
	assert.Equal(t, domain.VoiceSourceDefault, sel.Source)

	// Invalid values are never persisted either.
	_, ok, err := kv.Get(repository.KeyLastVoiceParam)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolve_URLBeatsIntentBeatsStorage(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Set(repository.KeyLastVoiceParam, "coach"))
	resolver := NewResolver(kv, nil)

	intent := &domain.RedirectIntent{
		Destination: "/ask-sage",
		Metadata:    map[string]string{domain.MetaVoice: "mentor"},
		CreatedAt:   time.Now(),
	}

	sel := resolver.Resolve(query("mirror"), intent)
	assert.Equal(t, "mirror", sel.Value)
	assert.Equal(t, domain.VoiceSourceURL, sel.Source)

	sel = resolver.Resolve(query(""), intent)
	assert.Equal(t, "mentor", sel.Value)
	assert.Equal(t, domain.VoiceSourceIntent, sel.Source)

	sel = resolver.Resolve(query(""), nil)
	assert.Equal(t, domain.VoiceSourceStorage, sel.Source)
}

func TestResolve_StaleIntentIgnored(t *testing.T) {
	resolver := NewResolver(newMemKV(), nil)

	intent := &domain.RedirectIntent{
		Destination: "/ask-sage",
		Metadata:    map[string]string{domain.MetaVoice: "mentor"},
		CreatedAt:   time.Now().Add(-domain.IntentMaxAge - time.Minute),
	}

	sel := resolver.Resolve(query(""), intent)
	assert.Equal(t, domain.VoiceDefault, sel.Value)
}

func TestResolve_ChangeNotifiedExactlyOnce(t *testing.T) {
	resolver := NewResolver(newMemKV(), nil)

	var mu sync.Mutex
	var changes []string
	resolver.Subscribe(func(sel domain.VoiceSelection) {
		mu.Lock()
		changes = append(changes, sel.Value)
		mu.Unlock()
	})

	resolver.Resolve(query("mirror"), nil)
	resolver.Resolve(query("mirror"), nil)
	resolver.Resolve(query("mirror"), nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"mirror"}, changes)
}

func TestResolve_TransitionHistoryCapped(t *testing.T) {
	kv := newMemKV()
	resolver := NewResolver(kv, nil)

	resolver.Resolve(query("mirror"), nil)
	resolver.Resolve(query("mentor"), nil)
	resolver.Resolve(query("coach"), nil)
	resolver.Resolve(query("analyst"), nil)

	var history []domain.VoiceTransition
	ok, err := kv.GetJSON(repository.KeyVoiceParamTransitions, &history)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, history, domain.VoiceTransitionCap)
	assert.Equal(t, "analyst", history[len(history)-1].To)
}
