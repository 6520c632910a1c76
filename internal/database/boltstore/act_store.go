package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

// ActStore provides persistent storage for the action ledger.
type ActStore struct {
	db *bolt.DB
}

var _ actions.Store = (*ActStore)(nil)

// CreateAct persists a new act, assigning the next monotonic id.
func (s *ActStore) CreateAct(ctx context.Context, act *actions.Act) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActs)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketActs)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to assign act id: %w", err)
		}
		act.ID = int64(seq)

		data, err := json.Marshal(act)
		if err != nil {
			return fmt.Errorf("failed to marshal act: %w", err)
		}

		return bucket.Put(itob(act.ID), data)
	})
}

// GetAct retrieves an act by id.
func (s *ActStore) GetAct(ctx context.Context, id int64) (*actions.Act, error) {
	var act *actions.Act

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActs)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return nil
		}

		act = &actions.Act{}
		return json.Unmarshal(data, act)
	})
	if err != nil {
		return nil, err
	}
	if act == nil {
		return nil, moderr.NotFoundf("act %d", id)
	}
	return act, nil
}

// LastActive returns the most recent still-active act of the given kind for
// (user, guild), or nil if none exists. A zero guild matches any guild.
func (s *ActStore) LastActive(ctx context.Context, user, guild int64, kind actions.Kind) (*actions.Act, error) {
	var found *actions.Act

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActs)
		if bucket == nil {
			return nil
		}

		// Keys are sequential, so reverse iteration finds the newest first.
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var act actions.Act
			if err := json.Unmarshal(v, &act); err != nil {
				return err
			}
			if act.User == user && (guild == 0 || act.Guild == guild) && act.Active && act.Kind == kind {
				found = &act
				return nil
			}
		}
		return nil
	})

	return found, err
}

// SetReviewer records the resolving reviewer on an act.
func (s *ActStore) SetReviewer(ctx context.Context, id, reviewer int64) error {
	return s.updateAct(id, func(act *actions.Act) {
		act.Reviewer = reviewer
	})
}

// DeactivateAct closes an act.
func (s *ActStore) DeactivateAct(ctx context.Context, id, reviewer int64) error {
	return s.updateAct(id, func(act *actions.Act) {
		act.Active = false
		act.Counting = false
		if act.Reviewer == 0 {
			act.Reviewer = reviewer
		}
	})
}

// SetProveLink attaches an evidence link to an act.
func (s *ActStore) SetProveLink(ctx context.Context, id int64, link string) error {
	return s.updateAct(id, func(act *actions.Act) {
		act.ProveLink = link
	})
}

// ActsByUser returns acts against a subject, oldest first.
func (s *ActStore) ActsByUser(ctx context.Context, user int64, q actions.UserQuery) ([]actions.Act, error) {
	return s.scan(func(act *actions.Act) bool {
		if act.User != user {
			return false
		}
		if q.Guild != 0 && act.Guild != q.Guild {
			return false
		}
		if q.CountingOnly && !act.Counting {
			return false
		}
		if !q.After.IsZero() && !act.At.After(q.After) {
			return false
		}
		return true
	})
}

// ActsByModerator returns acts issued by a moderator, oldest first.
func (s *ActStore) ActsByModerator(ctx context.Context, moderator int64, q actions.ModeratorQuery) ([]actions.Act, error) {
	return s.scan(func(act *actions.Act) bool {
		if act.Moderator != moderator {
			return false
		}
		if q.Guild != 0 && act.Guild != q.Guild {
			return false
		}
		if !q.From.IsZero() && act.At.Before(q.From) {
			return false
		}
		if !q.To.IsZero() && act.At.After(q.To) {
			return false
		}
		return true
	})
}

// ActsByGuild returns all acts recorded in a guild, oldest first.
func (s *ActStore) ActsByGuild(ctx context.Context, guild int64) ([]actions.Act, error) {
	return s.scan(func(act *actions.Act) bool {
		return act.Guild == guild
	})
}

func (s *ActStore) scan(match func(*actions.Act) bool) ([]actions.Act, error) {
	var acts []actions.Act

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActs)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var act actions.Act
			if err := json.Unmarshal(v, &act); err != nil {
				return err
			}
			if match(&act) {
				acts = append(acts, act)
			}
			return nil
		})
	})

	return acts, err
}

func (s *ActStore) updateAct(id int64, mutate func(*actions.Act)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketActs)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketActs)
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return moderr.NotFoundf("act %d", id)
		}

		var act actions.Act
		if err := json.Unmarshal(data, &act); err != nil {
			return err
		}
		mutate(&act)

		updated, err := json.Marshal(&act)
		if err != nil {
			return fmt.Errorf("failed to marshal act: %w", err)
		}
		return bucket.Put(itob(id), updated)
	})
}
