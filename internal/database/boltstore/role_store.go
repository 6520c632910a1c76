package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/roles"
)

// RoleStore provides persistent storage for role requests and removals.
type RoleStore struct {
	db *bolt.DB
}

var _ roles.Store = (*RoleStore)(nil)

func openRequestKey(user, guild int64) []byte {
	return []byte(fmt.Sprintf("%d:%d", guild, user))
}

// CreateRequest inserts a request. The open-request index is checked and
// written in the same transaction, so a user cannot race two open requests
// into the same guild.
func (s *RoleStore) CreateRequest(ctx context.Context, r *roles.Request) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		index := tx.Bucket(BucketRoleRequestsOpen)
		if bucket == nil || index == nil {
			return fmt.Errorf("bucket not found: %s", BucketRoleRequests)
		}

		idxKey := openRequestKey(r.User, r.Guild)
		if index.Get(idxKey) != nil {
			return moderr.Conflictf("user %d already has an open request in guild %d", r.User, r.Guild)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to assign request id: %w", err)
		}
		r.ID = int64(seq)

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		if err := bucket.Put(itob(r.ID), data); err != nil {
			return err
		}
		return index.Put(idxKey, itob(r.ID))
	})
}

// GetRequest retrieves a request by id.
func (s *RoleStore) GetRequest(ctx context.Context, id int64) (*roles.Request, error) {
	var r *roles.Request

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return nil
		}

		r = &roles.Request{}
		return json.Unmarshal(data, r)
	})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, moderr.NotFoundf("role request %d", id)
	}
	return r, nil
}

// OpenRequest returns the user's open request in the guild, or nil.
func (s *RoleStore) OpenRequest(ctx context.Context, user, guild int64) (*roles.Request, error) {
	var r *roles.Request

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		index := tx.Bucket(BucketRoleRequestsOpen)
		if bucket == nil || index == nil {
			return nil
		}

		idBytes := index.Get(openRequestKey(user, guild))
		if idBytes == nil {
			return nil
		}

		data := bucket.Get(idBytes)
		if data == nil {
			return nil
		}

		r = &roles.Request{}
		return json.Unmarshal(data, r)
	})

	return r, err
}

// MutateRequest applies mutate to the stored request inside one write
// transaction, so guards in mutate and the resulting write cannot interleave
// with a concurrent mutation. The open index entry is dropped once the
// request is decided.
func (s *RoleStore) MutateRequest(ctx context.Context, id int64, mutate func(r *roles.Request) error) (*roles.Request, error) {
	var out *roles.Request

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		index := tx.Bucket(BucketRoleRequestsOpen)
		if bucket == nil || index == nil {
			return fmt.Errorf("bucket not found: %s", BucketRoleRequests)
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return moderr.NotFoundf("role request %d", id)
		}

		r := &roles.Request{}
		if err := json.Unmarshal(data, r); err != nil {
			return err
		}
		if err := mutate(r); err != nil {
			return err
		}

		updated, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		if err := bucket.Put(itob(id), updated); err != nil {
			return err
		}

		if !r.Open() {
			idxKey := openRequestKey(r.User, r.Guild)
			// Only drop the index if it still points at this request.
			if idBytes := index.Get(idxKey); idBytes != nil && int64(binary.BigEndian.Uint64(idBytes)) == id {
				if err := index.Delete(idxKey); err != nil {
					return err
				}
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsLastRequest reports whether no newer request exists for the same user
// and guild.
func (s *RoleStore) IsLastRequest(ctx context.Context, id, user, guild int64) (bool, error) {
	last := true

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.Seek(itob(id + 1)); k != nil; k, v = c.Next() {
			var r roles.Request
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.User == user && r.Guild == guild {
				last = false
				return nil
			}
		}
		return nil
	})

	return last, err
}

// RequestsByUser returns the user's requests in a guild, oldest first.
func (s *RoleStore) RequestsByUser(ctx context.Context, user, guild int64) ([]roles.Request, error) {
	return s.scanRequests(func(r *roles.Request) bool {
		return r.User == user && r.Guild == guild
	})
}

// RequestsByModerator returns the moderator's counted decisions in a guild
// within [from, to].
func (s *RoleStore) RequestsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]roles.Request, error) {
	return s.scanRequests(func(r *roles.Request) bool {
		if r.Guild != guild || r.Moderator != moderator || !r.Counting {
			return false
		}
		return !r.SentAt.Before(from) && !r.SentAt.After(to)
	})
}

// CountOpenRequests returns how many requests await a decision.
func (s *RoleStore) CountOpenRequests(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketRoleRequestsOpen)
		if index == nil {
			return nil
		}
		count = index.Stats().KeyN
		return nil
	})

	return count, err
}

// CreateRemoval inserts a removal record, assigning the next id.
func (s *RoleStore) CreateRemoval(ctx context.Context, rm *roles.Removal) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRemovals)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketRoleRemovals)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to assign removal id: %w", err)
		}
		rm.ID = int64(seq)

		data, err := json.Marshal(rm)
		if err != nil {
			return fmt.Errorf("failed to marshal removal: %w", err)
		}
		return bucket.Put(itob(rm.ID), data)
	})
}

// RemovalsByModerator returns the moderator's removals in a guild within
// [from, to].
func (s *RoleStore) RemovalsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]roles.Removal, error) {
	var rms []roles.Removal

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRemovals)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rm roles.Removal
			if err := json.Unmarshal(v, &rm); err != nil {
				return err
			}
			if rm.Guild == guild && rm.Moderator == moderator && !rm.At.Before(from) && !rm.At.After(to) {
				rms = append(rms, rm)
			}
			return nil
		})
	})

	return rms, err
}

func (s *RoleStore) scanRequests(match func(*roles.Request) bool) ([]roles.Request, error) {
	var reqs []roles.Request

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRoleRequests)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var r roles.Request
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if match(&r) {
				reqs = append(reqs, r)
			}
			return nil
		})
	})

	return reqs, err
}
