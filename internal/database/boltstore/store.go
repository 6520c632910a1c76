// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements the store interfaces of the actions, sanctions, warnings,
// roles and notices packages.
package boltstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketActs stores ledger acts keyed by 8-byte big-endian id
	BucketActs = []byte("acts")

	// BucketSanctions stores active sanctions keyed by their uniqueness key
	BucketSanctions = []byte("sanctions")

	// BucketWarnings stores warning accumulators keyed by "guild:user"
	BucketWarnings = []byte("warnings")

	// BucketRoleRequests stores role requests keyed by 8-byte big-endian id
	BucketRoleRequests = []byte("role_requests")

	// BucketRoleRequestsOpen indexes open requests by "guild:user"
	BucketRoleRequestsOpen = []byte("role_requests_open")

	// BucketRoleRemovals stores role removals keyed by 8-byte big-endian id
	BucketRoleRemovals = []byte("role_removals")

	// BucketNotices stores notifications keyed by 8-byte big-endian id
	BucketNotices = []byte("notices")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "vigil.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "vigil.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketActs,
			BucketSanctions,
			BucketWarnings,
			BucketRoleRequests,
			BucketRoleRequestsOpen,
			BucketRoleRemovals,
			BucketNotices,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ActStore returns an action ledger store backed by this database.
func (s *Store) ActStore() *ActStore {
	return &ActStore{db: s.db}
}

// SanctionStore returns a sanction store backed by this database.
func (s *Store) SanctionStore() *SanctionStore {
	return &SanctionStore{db: s.db}
}

// WarningStore returns a warning accumulator store backed by this database.
func (s *Store) WarningStore() *WarningStore {
	return &WarningStore{db: s.db}
}

// RoleStore returns a role request store backed by this database.
func (s *Store) RoleStore() *RoleStore {
	return &RoleStore{db: s.db}
}

// NoticeStore returns a notification store backed by this database.
func (s *Store) NoticeStore() *NoticeStore {
	return &NoticeStore{db: s.db}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

// itob converts an id to a sortable 8-byte big-endian key.
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}
