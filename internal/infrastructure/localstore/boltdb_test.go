package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_KeyValueRoundTrip(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("lastVoiceParam", "mirror"))
	value, ok, err := store.Get("lastVoiceParam")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mirror", value)

	require.NoError(t, store.Delete("lastVoiceParam"))
	_, ok, err = store.Get("lastVoiceParam")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_JSONRoundTrip(t *testing.T) {
	store := openTestStore(t)

	type entry struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	in := []entry{{From: "default", To: "mirror"}}
	require.NoError(t, store.SetJSON("history", in))

	var out []entry
	ok, err := store.GetJSON("history", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)

	ok, err = store.GetJSON("absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EnqueueOrdersByPriority(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(PatchItem{UserID: "u1", Priority: 3, Patch: map[string]string{"role": "admin"}}))
	require.NoError(t, store.Enqueue(PatchItem{UserID: "u2", Priority: 1, Patch: map[string]string{"org_id": "org-1"}}))
	require.NoError(t, store.Enqueue(PatchItem{UserID: "u3", Priority: 5, Patch: map[string]string{"voice": "mirror"}}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "u2", items[0].UserID)
	assert.Equal(t, "u1", items[1].UserID)
	assert.Equal(t, "u3", items[2].UserID)

	count, err := store.PendingPatches()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_RemoveAndRequeue(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Enqueue(PatchItem{UserID: "u1", Patch: map[string]string{"role": "admin"}}))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	item.Retries++
	require.NoError(t, store.Remove(items[0]))
	require.NoError(t, store.Requeue(item))

	items, err = store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)
	assert.Equal(t, items[0].ID, item.ID)

	require.NoError(t, store.Remove(items[0]))
	count, err := store.PendingPatches()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_NormalizeFillsDefaults(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Enqueue(PatchItem{UserID: "u1", Priority: 99}))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, 3, items[0].Priority)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestStore_CleanupDropsOldItems(t *testing.T) {
	store := openTestStore(t)

	old := PatchItem{UserID: "old", Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := PatchItem{UserID: "fresh"}
	require.NoError(t, store.Enqueue(old))
	require.NoError(t, store.Enqueue(fresh))

	require.NoError(t, store.Cleanup(time.Now().Add(-24*time.Hour)))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].UserID)
}
