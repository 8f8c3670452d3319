package storage

// Store is the host-side key/value persistence used by the console: the
// session token and per-app UI preferences. Values are plain strings; a
// missing key reads back as the empty string.
type Store interface {
	// Session token. Token is re-read by the transport on every request,
	// so writes here take effect immediately.
	Token() string
	SetToken(token string) error
	ClearToken() error

	// Per-app UI preferences.
	Pref(appID, name string) string
	SetPref(appID, name, value string) error
	DeleteAppPrefs(appID string) error

	Close() error
}

// Preference names persisted per app.
const (
	PrefSidebarOpen = "sidebarOpen"
	PrefSidebarTab  = "sidebarTab"
	PrefChatSidebar = "chatSidebar"
)

// TokenSource yields the current bearer token, or "" when logged out.
// The transport consults it on every request and never caches the result.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-value TokenSource for tests and one-shot tools.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }
