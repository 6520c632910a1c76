package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/roles"
)

// RoleStore implements roles.Store using SQLite. The partial unique index on
// open requests makes the one-open-request rule a property of the insert.
type RoleStore struct {
	db *sql.DB
}

var _ roles.Store = (*RoleStore)(nil)

const requestColumns = `id, user_id, guild_id, nickname, role, rank, message, approved, counting, sent_at, moderator_id, taken_at, checked_at, reason, reviewer, review_reason`

func (s *RoleStore) CreateRequest(ctx context.Context, r *roles.Request) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO role_requests (user_id, guild_id, nickname, role, rank, message, approved, counting, sent_at, moderator_id, taken_at, checked_at, reason, reviewer, review_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.User, r.Guild, r.Nickname, r.Role, r.Rank, r.Message, boolToInt(r.Approved), boolToInt(r.Counting),
		formatTime(r.SentAt), r.Moderator, nullableTime(r.TakenAt), nullableTime(r.CheckedAt),
		r.Reason, r.Reviewer, r.ReviewReason)
	if isUniqueViolation(err) {
		return moderr.Conflictf("user %d already has an open request in guild %d", r.User, r.Guild)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	r.ID = id
	return nil
}

func (s *RoleStore) GetRequest(ctx context.Context, id int64) (*roles.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM role_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, moderr.NotFoundf("role request %d", id)
	}
	return r, err
}

func (s *RoleStore) OpenRequest(ctx context.Context, user, guild int64) (*roles.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM role_requests
		WHERE user_id = ? AND guild_id = ? AND checked_at IS NULL
	`, user, guild)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// MutateRequest applies mutate to the stored request inside one transaction,
// so guards in mutate and the resulting write cannot interleave with a
// concurrent mutation.
func (s *RoleStore) MutateRequest(ctx context.Context, id int64, mutate func(r *roles.Request) error) (*roles.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM role_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, moderr.NotFoundf("role request %d", id)
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(r); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE role_requests SET
			nickname = ?, role = ?, rank = ?, message = ?, approved = ?, counting = ?,
			moderator_id = ?, taken_at = ?, checked_at = ?, reason = ?,
			reviewer = ?, review_reason = ?
		WHERE id = ?
	`, r.Nickname, r.Role, r.Rank, r.Message, boolToInt(r.Approved), boolToInt(r.Counting),
		r.Moderator, nullableTime(r.TakenAt), nullableTime(r.CheckedAt), r.Reason,
		r.Reviewer, r.ReviewReason, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RoleStore) IsLastRequest(ctx context.Context, id, user, guild int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM role_requests
		WHERE user_id = ? AND guild_id = ? AND id > ? LIMIT 1
	`, user, guild, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *RoleStore) RequestsByUser(ctx context.Context, user, guild int64) ([]roles.Request, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM role_requests
		WHERE user_id = ? AND guild_id = ? ORDER BY id
	`, user, guild)
}

func (s *RoleStore) RequestsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]roles.Request, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM role_requests
		WHERE guild_id = ? AND moderator_id = ? AND counting = 1 AND sent_at >= ? AND sent_at <= ?
		ORDER BY id
	`, guild, moderator, formatTime(from), formatTime(to))
}

func (s *RoleStore) CountOpenRequests(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM role_requests WHERE checked_at IS NULL`).Scan(&n)
	return n, err
}

func (s *RoleStore) CreateRemoval(ctx context.Context, rm *roles.Removal) error {
	names, err := json.Marshal(rm.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO role_removals (user_id, guild_id, roles, at, moderator_id)
		VALUES (?, ?, ?, ?, ?)
	`, rm.User, rm.Guild, string(names), formatTime(rm.At), rm.Moderator)
	if err != nil {
		return fmt.Errorf("create removal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create removal: %w", err)
	}
	rm.ID = id
	return nil
}

func (s *RoleStore) RemovalsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]roles.Removal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, roles, at, moderator_id FROM role_removals
		WHERE guild_id = ? AND moderator_id = ? AND at >= ? AND at <= ?
		ORDER BY id
	`, guild, moderator, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rms []roles.Removal
	for rows.Next() {
		var rm roles.Removal
		var names, at string
		if err := rows.Scan(&rm.ID, &rm.User, &rm.Guild, &names, &at, &rm.Moderator); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(names), &rm.Roles); err != nil {
			return nil, fmt.Errorf("unmarshal roles: %w", err)
		}
		rm.At = parseTime(at)
		rms = append(rms, rm)
	}
	return rms, rows.Err()
}

func (s *RoleStore) queryRequests(ctx context.Context, query string, args ...any) ([]roles.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []roles.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *r)
	}
	return reqs, rows.Err()
}

func scanRequest(row rowScanner) (*roles.Request, error) {
	var r roles.Request
	var approved, counting int
	var sentAt string
	var takenAt, checkedAt sql.NullString
	if err := row.Scan(&r.ID, &r.User, &r.Guild, &r.Nickname, &r.Role, &r.Rank,
		&r.Message, &approved, &counting, &sentAt, &r.Moderator, &takenAt, &checkedAt,
		&r.Reason, &r.Reviewer, &r.ReviewReason); err != nil {
		return nil, err
	}
	r.Approved = approved == 1
	r.Counting = counting == 1
	r.SentAt = parseTime(sentAt)
	r.TakenAt = parseNullableTime(takenAt)
	r.CheckedAt = parseNullableTime(checkedAt)
	return &r, nil
}
