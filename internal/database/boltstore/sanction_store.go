package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/sanctions"
)

// SanctionStore provides persistent storage for active sanctions.
type SanctionStore struct {
	db *bolt.DB
}

var _ sanctions.Store = (*SanctionStore)(nil)

// CreateSanction inserts a sanction unless its key is already taken. The
// check and the insert share one write transaction, so two racing grants
// cannot both land.
func (s *SanctionStore) CreateSanction(ctx context.Context, sn *sanctions.Sanction) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSanctions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketSanctions)
		}

		key := []byte(sn.Key())
		if bucket.Get(key) != nil {
			return moderr.Conflictf("sanction %s already active", sn.Key())
		}

		data, err := json.Marshal(sn)
		if err != nil {
			return fmt.Errorf("failed to marshal sanction: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetSanction returns the active sanction for a key, or nil.
func (s *SanctionStore) GetSanction(ctx context.Context, key string) (*sanctions.Sanction, error) {
	var sn *sanctions.Sanction

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSanctions)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}

		sn = &sanctions.Sanction{}
		return json.Unmarshal(data, sn)
	})

	return sn, err
}

// DeleteSanction removes the row for a key, reporting whether a row existed.
// The check and the delete share one write transaction, so an expiry firing
// against a concurrently removed row observes false.
func (s *SanctionStore) DeleteSanction(ctx context.Context, key string) (bool, error) {
	deleted := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSanctions)
		if bucket == nil {
			return nil
		}
		if bucket.Get([]byte(key)) == nil {
			return nil
		}
		deleted = true
		return bucket.Delete([]byte(key))
	})

	return deleted, err
}

// ListSanctions returns all active sanctions of one family using a key
// prefix scan.
func (s *SanctionStore) ListSanctions(ctx context.Context, family actions.Family) ([]sanctions.Sanction, error) {
	var rows []sanctions.Sanction

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSanctions)
		if bucket == nil {
			return nil
		}

		prefix := []byte(string(family) + ":")
		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var sn sanctions.Sanction
			if err := json.Unmarshal(v, &sn); err != nil {
				return err
			}
			rows = append(rows, sn)
		}
		return nil
	})

	return rows, err
}

// SanctionsByUser returns all active sanctions against a user.
func (s *SanctionStore) SanctionsByUser(ctx context.Context, user int64) ([]sanctions.Sanction, error) {
	var rows []sanctions.Sanction

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSanctions)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var sn sanctions.Sanction
			if err := json.Unmarshal(v, &sn); err != nil {
				return err
			}
			if sn.User == user {
				rows = append(rows, sn)
			}
			return nil
		})
	})

	return rows, err
}
