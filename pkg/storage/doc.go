/*
Package storage persists the console's local state in a bbolt database.

Two buckets: "session" holds the auth token, "prefs" holds per-app UI
preferences keyed "<name>_<appId>". The Store interface abstracts both so
tests can substitute an in-memory implementation.

BoltStore also satisfies transport.TokenSource, which is why commands
hand the store straight to the API client: the token is re-read from
disk on every request, so login and logout take effect immediately.

	store, err := storage.NewBoltStore(cfg.DataDir)
	defer store.Close()
	client, err := transport.NewClient(cfg.APIOrigin, store)

DeleteAppPrefs removes every preference for an app and is called when
the app itself is deleted.
*/
package storage
