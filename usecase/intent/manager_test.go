package intent

import (
	"encoding/json"
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

func TestCapture_HigherPriorityReplaces(t *testing.T) {
	m := NewManager(newMemKV(), nil)

	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))
	assert.False(t, m.Capture("/settings", "generic", nil, domain.IntentPriorityLow))
	assert.Equal(t, "/dashboard", m.Active().Destination)

	require.True(t, m.Capture("/ask-sage", "deep-link", nil, domain.IntentPriorityHigh))
	assert.Equal(t, "/ask-sage", m.Active().Destination)
}

func TestCapture_StaleActiveIntentDoesNotReject(t *testing.T) {
	m := NewManager(newMemKV(), nil)

	require.True(t, m.Capture("/admin", "escalation", nil, domain.IntentPriorityCritical))
	m.active.CreatedAt = time.Now().Add(-domain.IntentMaxAge - time.Minute)

	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))
	assert.Equal(t, "/dashboard", m.Active().Destination)
}

func TestCapture_EqualPriorityLastWriterWins(t *testing.T) {
	m := NewManager(newMemKV(), nil)

	require.True(t, m.Capture("/first", "a", nil, domain.IntentPriorityDefault))
	require.True(t, m.Capture("/second", "b", nil, domain.IntentPriorityDefault))
	assert.Equal(t, "/second", m.Active().Destination)
}

func TestCapture_EmptyDestinationRejected(t *testing.T) {
	m := NewManager(newMemKV(), nil)
	assert.False(t, m.Capture("", "x", nil, domain.IntentPriorityHigh))
	assert.Nil(t, m.Active())
}

func TestCapture_PersistsDestinationAndSearch(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, nil)

	require.True(t, m.Capture("/ask-sage", "deep-link",
		map[string]string{"search": "?voice=mirror"}, domain.IntentPriorityHigh))

	dest, ok, err := kv.Get(repository.KeyRedirectAfterLogin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/ask-sage", dest)

	search, ok, err := kv.Get(repository.KeyPreserveSearchParams)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "?voice=mirror", search)
}

func TestExecute_ConsumesExactlyOnce(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, nil)
	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))

	intent := m.Execute()
	require.NotNil(t, intent)
	assert.Equal(t, "/dashboard", intent.Destination)

	assert.Nil(t, m.Execute())
	assert.Nil(t, m.Active())

	_, ok, err := kv.Get(repository.KeyRedirectAfterLogin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_RebuildsLowPriorityIntent(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Set(repository.KeyRedirectAfterLogin, "/ask-sage"))

	m := NewManager(kv, nil)
	intent := m.Active()
	require.NotNil(t, intent)
	assert.Equal(t, "/ask-sage", intent.Destination)
	assert.Equal(t, "restored", intent.Reason)
	assert.Equal(t, domain.IntentPriorityLow, intent.Priority)

	// Restored intents lose to any real capture.
	assert.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))
}

func TestActive_ReturnsCopy(t *testing.T) {
	m := NewManager(newMemKV(), nil)
	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))

	first := m.Active()
	first.Destination = "/mutated"
	assert.Equal(t, "/dashboard", m.Active().Destination)
}

func TestPruneStale_DropsExpiredIntent(t *testing.T) {
	kv := newMemKV()
	m := NewManager(kv, nil)
	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))

	assert.False(t, m.PruneStale(time.Now()))
	require.NotNil(t, m.Active())

	assert.True(t, m.PruneStale(time.Now().Add(domain.IntentMaxAge+time.Minute)))
	assert.Nil(t, m.Active())

	_, ok, err := kv.Get(repository.KeyRedirectAfterLogin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClear_DiscardsWithoutNavigation(t *testing.T) {
	m := NewManager(newMemKV(), nil)
	require.True(t, m.Capture("/dashboard", "user-intent", nil, domain.IntentPriorityDefault))

	m.Clear()
	assert.Nil(t, m.Active())
	m.Clear()
}
