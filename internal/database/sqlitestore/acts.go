package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

// ActStore implements actions.Store using SQLite.
type ActStore struct {
	db *sql.DB
}

var _ actions.Store = (*ActStore)(nil)

const actColumns = `id, at, user_id, guild_id, moderator_id, kind, active, counting, reviewer, duration, reason, prove_link`

func (s *ActStore) CreateAct(ctx context.Context, act *actions.Act) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO acts (at, user_id, guild_id, moderator_id, kind, active, counting, reviewer, duration, reason, prove_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(act.At), act.User, act.Guild, act.Moderator, act.Kind.String(),
		boolToInt(act.Active), boolToInt(act.Counting), act.Reviewer, act.Duration, act.Reason, act.ProveLink)
	if err != nil {
		return fmt.Errorf("create act: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create act: %w", err)
	}
	act.ID = id
	return nil
}

func (s *ActStore) GetAct(ctx context.Context, id int64) (*actions.Act, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actColumns+` FROM acts WHERE id = ?`, id)
	act, err := scanAct(row)
	if err == sql.ErrNoRows {
		return nil, moderr.NotFoundf("act %d", id)
	}
	return act, err
}

// LastActive returns the most recent still-active act of the given kind.
// A zero guild matches any guild.
func (s *ActStore) LastActive(ctx context.Context, user, guild int64, kind actions.Kind) (*actions.Act, error) {
	query := `SELECT ` + actColumns + ` FROM acts WHERE user_id = ? AND kind = ? AND active = 1`
	args := []any{user, kind.String()}
	if guild != 0 {
		query += ` AND guild_id = ?`
		args = append(args, guild)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	act, err := scanAct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return act, err
}

func (s *ActStore) SetReviewer(ctx context.Context, id, reviewer int64) error {
	return s.updateAct(ctx, id, `UPDATE acts SET reviewer = ? WHERE id = ?`, reviewer, id)
}

func (s *ActStore) DeactivateAct(ctx context.Context, id, reviewer int64) error {
	return s.updateAct(ctx, id, `
		UPDATE acts SET active = 0, counting = 0,
			reviewer = CASE WHEN reviewer = 0 THEN ? ELSE reviewer END
		WHERE id = ?
	`, reviewer, id)
}

func (s *ActStore) SetProveLink(ctx context.Context, id int64, link string) error {
	return s.updateAct(ctx, id, `UPDATE acts SET prove_link = ? WHERE id = ?`, link, id)
}

func (s *ActStore) ActsByUser(ctx context.Context, user int64, q actions.UserQuery) ([]actions.Act, error) {
	query := `SELECT ` + actColumns + ` FROM acts WHERE user_id = ?`
	args := []any{user}
	if q.Guild != 0 {
		query += ` AND guild_id = ?`
		args = append(args, q.Guild)
	}
	if q.CountingOnly {
		query += ` AND counting = 1`
	}
	if !q.After.IsZero() {
		query += ` AND at > ?`
		args = append(args, formatTime(q.After))
	}
	query += ` ORDER BY id`
	return s.queryActs(ctx, query, args...)
}

func (s *ActStore) ActsByModerator(ctx context.Context, moderator int64, q actions.ModeratorQuery) ([]actions.Act, error) {
	query := `SELECT ` + actColumns + ` FROM acts WHERE moderator_id = ?`
	args := []any{moderator}
	if q.Guild != 0 {
		query += ` AND guild_id = ?`
		args = append(args, q.Guild)
	}
	if !q.From.IsZero() {
		query += ` AND at >= ?`
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND at <= ?`
		args = append(args, formatTime(q.To))
	}
	query += ` ORDER BY id`
	return s.queryActs(ctx, query, args...)
}

func (s *ActStore) ActsByGuild(ctx context.Context, guild int64) ([]actions.Act, error) {
	return s.queryActs(ctx, `SELECT `+actColumns+` FROM acts WHERE guild_id = ? ORDER BY id`, guild)
}

func (s *ActStore) queryActs(ctx context.Context, query string, args ...any) ([]actions.Act, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []actions.Act
	for rows.Next() {
		act, err := scanAct(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, *act)
	}
	return acts, rows.Err()
}

func (s *ActStore) updateAct(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderr.NotFoundf("act %d", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAct(row rowScanner) (*actions.Act, error) {
	var act actions.Act
	var at, kind string
	var active, counting int
	if err := row.Scan(&act.ID, &at, &act.User, &act.Guild, &act.Moderator, &kind,
		&active, &counting, &act.Reviewer, &act.Duration, &act.Reason, &act.ProveLink); err != nil {
		return nil, err
	}

	parsed, err := actions.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	act.Kind = parsed
	act.At = parseTime(at)
	act.Active = active == 1
	act.Counting = counting == 1
	return &act, nil
}
