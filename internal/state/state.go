package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.pinsync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket      = []byte("app")
	tokenKey       = []byte("session_token")
	syncRunsBucket = []byte("sync_runs")
)

// SyncRecord summarizes the last successful sync pass over one container.
// Keyed by the container's relative path ("board" or "board/section").
type SyncRecord struct {
	Container string `json:"container"`
	SyncedAt  int64  `json:"synced_at"`
	Items     int    `json:"items"`
	Downloads int    `json:"downloads"`
	Removed   int    `json:"removed"`
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.pinsync/state.db, creating it
// if it does not exist. Buckets are created on open.
func Load() (*State, error) {
	return LoadAt(dbPath())
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(syncRunsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Token returns the cached session token, or empty string.
func (s *State) Token() string {
	var token string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(tokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken persists the session token. An empty token clears the entry.
func (s *State) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)
		if token == "" {
			return b.Delete(tokenKey)
		}

		return b.Put(tokenKey, []byte(token))
	})
}

// GetSyncRecord returns the last sync record for a container path, or nil
// if the container has never completed a pass.
func (s *State) GetSyncRecord(container string) (*SyncRecord, error) {
	var rec *SyncRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(syncRunsBucket).Get([]byte(container))
		if v == nil {
			return nil
		}

		rec = &SyncRecord{}

		return json.Unmarshal(v, rec)
	})

	return rec, err
}

// SetSyncRecord persists the sync record for a container path.
func (s *State) SetSyncRecord(rec SyncRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return tx.Bucket(syncRunsBucket).Put([]byte(rec.Container), data)
	})
}

// AllSyncRecords returns every stored sync record, keyed by container path.
func (s *State) AllSyncRecords() (map[string]SyncRecord, error) {
	result := make(map[string]SyncRecord)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(syncRunsBucket).ForEach(func(k, v []byte) error {
			var rec SyncRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			result[string(k)] = rec

			return nil
		})
	})

	return result, err
}

func dbPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Fail loudly rather than silently writing to the current directory
		// where the database (containing a session token) might end up with
		// wrong permissions or inside a source-controlled tree.
		fmt.Fprintf(os.Stderr, "fatal: cannot determine home directory: %v\n", err)
		os.Exit(1)
	}

	return filepath.Join(dir, ".pinsync", "state.db")
}
