package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestTokenRoundTrip tests token persistence
func TestTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)

	assert.Empty(t, store.Token(), "fresh store has no token")

	require.NoError(t, store.SetToken("abc123"))
	assert.Equal(t, "abc123", store.Token())

	require.NoError(t, store.SetToken("rotated"))
	assert.Equal(t, "rotated", store.Token())

	require.NoError(t, store.ClearToken())
	assert.Empty(t, store.Token())

	// Clearing twice is fine.
	require.NoError(t, store.ClearToken())
}

// TestTokenSurvivesReopen tests persistence across close/open
func TestTokenSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetToken("persist-me"))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "persist-me", reopened.Token())
}

// TestPrefs tests per-app preference storage
func TestPrefs(t *testing.T) {
	store := newTestStore(t)

	assert.Empty(t, store.Pref("app1", PrefSidebarTab))

	require.NoError(t, store.SetPref("app1", PrefSidebarTab, "logs"))
	require.NoError(t, store.SetPref("app1", PrefSidebarOpen, "true"))
	require.NoError(t, store.SetPref("app2", PrefSidebarTab, "events"))

	assert.Equal(t, "logs", store.Pref("app1", PrefSidebarTab))
	assert.Equal(t, "true", store.Pref("app1", PrefSidebarOpen))
	assert.Equal(t, "events", store.Pref("app2", PrefSidebarTab))
}

// TestDeleteAppPrefs tests cleanup when an app is deleted
func TestDeleteAppPrefs(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetPref("app1", PrefSidebarTab, "logs"))
	require.NoError(t, store.SetPref("app1", PrefChatSidebar, "open"))
	require.NoError(t, store.SetPref("app2", PrefSidebarTab, "events"))

	require.NoError(t, store.DeleteAppPrefs("app1"))

	assert.Empty(t, store.Pref("app1", PrefSidebarTab))
	assert.Empty(t, store.Pref("app1", PrefChatSidebar))
	assert.Equal(t, "events", store.Pref("app2", PrefSidebarTab), "other apps unaffected")

	// Deleting prefs of an unknown app is a no-op.
	require.NoError(t, store.DeleteAppPrefs("ghost"))
}

// TestStaticToken tests the fixed token source
func TestStaticToken(t *testing.T) {
	assert.Equal(t, "tok", StaticToken("tok").Token())
	assert.Empty(t, StaticToken("").Token())
}
