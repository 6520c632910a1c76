package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/notices"
)

// NoticeStore provides persistent storage for notifications.
type NoticeStore struct {
	db *bolt.DB
}

var _ notices.Store = (*NoticeStore)(nil)

// CreateNotification inserts a notification, assigning the next id.
func (s *NoticeStore) CreateNotification(ctx context.Context, n *notices.Notification) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotices)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketNotices)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to assign notification id: %w", err)
		}
		n.ID = int64(seq)

		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		return bucket.Put(itob(n.ID), data)
	})
}

// GetNotification retrieves a notification by id.
func (s *NoticeStore) GetNotification(ctx context.Context, id int64) (*notices.Notification, error) {
	var n *notices.Notification

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotices)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return nil
		}

		n = &notices.Notification{}
		return json.Unmarshal(data, n)
	})
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, moderr.NotFoundf("notification %d", id)
	}
	return n, nil
}

// MarkExpired sets the expired flag, keeping the row.
func (s *NoticeStore) MarkExpired(ctx context.Context, id int64) error {
	return s.updateNotification(id, func(n *notices.Notification) {
		n.Expired = true
	})
}

// MarkNotified sets the notified flag.
func (s *NoticeStore) MarkNotified(ctx context.Context, id int64) error {
	return s.updateNotification(id, func(n *notices.Notification) {
		n.Notified = true
	})
}

// ListActive returns all notifications not yet expired.
func (s *NoticeStore) ListActive(ctx context.Context) ([]notices.Notification, error) {
	var rows []notices.Notification

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotices)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var n notices.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if !n.Expired {
				rows = append(rows, n)
			}
			return nil
		})
	})

	return rows, err
}

func (s *NoticeStore) updateNotification(id int64, mutate func(*notices.Notification)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketNotices)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketNotices)
		}

		data := bucket.Get(itob(id))
		if data == nil {
			return moderr.NotFoundf("notification %d", id)
		}

		var n notices.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		mutate(&n)

		updated, err := json.Marshal(&n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		return bucket.Put(itob(id), updated)
	})
}
