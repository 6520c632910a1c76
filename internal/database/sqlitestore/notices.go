package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/notices"
)

// NoticeStore implements notices.Store using SQLite.
type NoticeStore struct {
	db *sql.DB
}

var _ notices.Store = (*NoticeStore)(nil)

const noticeColumns = `id, user_id, guild_id, moderator_id, kind, at, duration, message, expired, notified`

func (s *NoticeStore) CreateNotification(ctx context.Context, n *notices.Notification) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notices (user_id, guild_id, moderator_id, kind, at, duration, message, expired, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.User, n.Guild, n.Moderator, n.Kind.String(), formatTime(n.At), n.Duration, n.Message,
		boolToInt(n.Expired), boolToInt(n.Notified))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	return nil
}

func (s *NoticeStore) GetNotification(ctx context.Context, id int64) (*notices.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noticeColumns+` FROM notices WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, moderr.NotFoundf("notification %d", id)
	}
	return n, err
}

func (s *NoticeStore) MarkExpired(ctx context.Context, id int64) error {
	return s.updateNotification(ctx, id, `UPDATE notices SET expired = 1 WHERE id = ?`)
}

func (s *NoticeStore) MarkNotified(ctx context.Context, id int64) error {
	return s.updateNotification(ctx, id, `UPDATE notices SET notified = 1 WHERE id = ?`)
}

func (s *NoticeStore) ListActive(ctx context.Context) ([]notices.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+noticeColumns+` FROM notices WHERE expired = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notices.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *NoticeStore) updateNotification(ctx context.Context, id int64, query string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderr.NotFoundf("notification %d", id)
	}
	return nil
}

func scanNotification(row rowScanner) (*notices.Notification, error) {
	var n notices.Notification
	var kind, at string
	var expired, notified int
	if err := row.Scan(&n.ID, &n.User, &n.Guild, &n.Moderator, &kind, &at, &n.Duration,
		&n.Message, &expired, &notified); err != nil {
		return nil, err
	}

	parsed, err := actions.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	n.Kind = parsed
	n.At = parseTime(at)
	n.Expired = expired == 1
	n.Notified = notified == 1
	return &n, nil
}
