package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSession = []byte("session")
	bucketPrefs   = []byte("prefs")

	keyToken = []byte("token")
)

// BoltStore implements Store on a local BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the console database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "console.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSession, bucketPrefs} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Token returns the stored bearer token, or "" when none is saved.
func (s *BoltStore) Token() string {
	var token string
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSession).Get(keyToken); v != nil {
			token = string(v)
		}
		return nil
	})
	return token
}

// SetToken persists the bearer token.
func (s *BoltStore) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyToken, []byte(token))
	})
}

// ClearToken removes the bearer token. Clearing an absent token is not an
// error.
func (s *BoltStore) ClearToken() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keyToken)
	})
}

// Pref returns a per-app preference value, or "" when unset.
func (s *BoltStore) Pref(appID, name string) string {
	var value string
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketPrefs).Get(prefKey(appID, name)); v != nil {
			value = string(v)
		}
		return nil
	})
	return value
}

// SetPref stores a per-app preference value.
func (s *BoltStore) SetPref(appID, name, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPrefs).Put(prefKey(appID, name), []byte(value))
	})
}

// DeleteAppPrefs removes every preference stored for an app. Used when the
// app itself is deleted.
func (s *BoltStore) DeleteAppPrefs(appID string) error {
	suffix := []byte("_" + appID)
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPrefs).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if bytes.HasSuffix(k, suffix) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// prefKey mirrors the browser-side storage key shape: "<name>_<appId>".
func prefKey(appID, name string) []byte {
	return []byte(name + "_" + appID)
}
