package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/sanctions"
)

// SanctionStore implements sanctions.Store using SQLite.
type SanctionStore struct {
	db *sql.DB
}

var _ sanctions.Store = (*SanctionStore)(nil)

const sanctionColumns = `key, user_id, family, subtype, guild_id, action_id, start, duration`

// CreateSanction inserts a sanction. The primary key on the uniqueness key
// makes the insert the conflict check.
func (s *SanctionStore) CreateSanction(ctx context.Context, sn *sanctions.Sanction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sanctions (key, user_id, family, subtype, guild_id, action_id, start, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sn.Key(), sn.User, string(sn.Family), sn.Subtype, sn.Guild, sn.Action, formatTime(sn.Start), sn.Duration)
	if isUniqueViolation(err) {
		return moderr.Conflictf("sanction %s already active", sn.Key())
	}
	if err != nil {
		return fmt.Errorf("create sanction: %w", err)
	}
	return nil
}

func (s *SanctionStore) GetSanction(ctx context.Context, key string) (*sanctions.Sanction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE key = ?`, key)
	sn, err := scanSanction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sn, err
}

func (s *SanctionStore) DeleteSanction(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sanctions WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SanctionStore) ListSanctions(ctx context.Context, family actions.Family) ([]sanctions.Sanction, error) {
	return s.querySanctions(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE family = ?`, string(family))
}

func (s *SanctionStore) SanctionsByUser(ctx context.Context, user int64) ([]sanctions.Sanction, error) {
	return s.querySanctions(ctx, `SELECT `+sanctionColumns+` FROM sanctions WHERE user_id = ?`, user)
}

func (s *SanctionStore) querySanctions(ctx context.Context, query string, args ...any) ([]sanctions.Sanction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sanctions.Sanction
	for rows.Next() {
		sn, err := scanSanction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

func scanSanction(row rowScanner) (*sanctions.Sanction, error) {
	var sn sanctions.Sanction
	var key, family, start string
	if err := row.Scan(&key, &sn.User, &family, &sn.Subtype, &sn.Guild, &sn.Action, &start, &sn.Duration); err != nil {
		return nil, err
	}
	sn.Family = actions.Family(family)
	sn.Start = parseTime(start)
	return &sn, nil
}
