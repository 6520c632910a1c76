package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"tangled.org/vigil.community/vigil/internal/warnings"
)

// WarningStore provides persistent storage for warning accumulators.
type WarningStore struct {
	db *bolt.DB
}

var _ warnings.Store = (*WarningStore)(nil)

func warningKey(user, guild int64) []byte {
	return []byte(fmt.Sprintf("%d:%d", guild, user))
}

// GetAccumulator returns the accumulator for (user, guild), or nil.
func (s *WarningStore) GetAccumulator(ctx context.Context, user, guild int64) (*warnings.Accumulator, error) {
	var a *warnings.Accumulator

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketWarnings)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(warningKey(user, guild))
		if data == nil {
			return nil
		}

		a = &warnings.Accumulator{}
		return json.Unmarshal(data, a)
	})

	return a, err
}

// PutAccumulator writes the accumulator.
func (s *WarningStore) PutAccumulator(ctx context.Context, a *warnings.Accumulator) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketWarnings)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketWarnings)
		}

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal accumulator: %w", err)
		}
		return bucket.Put(warningKey(a.User, a.Guild), data)
	})
}

// DeleteAccumulator removes the accumulator for (user, guild).
func (s *WarningStore) DeleteAccumulator(ctx context.Context, user, guild int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketWarnings)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(warningKey(user, guild))
	})
}

// ListAccumulators returns every stored accumulator.
func (s *WarningStore) ListAccumulators(ctx context.Context) ([]warnings.Accumulator, error) {
	var all []warnings.Accumulator

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketWarnings)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var a warnings.Accumulator
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			all = append(all, a)
			return nil
		})
	})

	return all, err
}
