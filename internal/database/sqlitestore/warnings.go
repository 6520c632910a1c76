package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tangled.org/vigil.community/vigil/internal/warnings"
)

// WarningStore implements warnings.Store using SQLite. Givens are stored as
// a JSON array next to the carried base count.
type WarningStore struct {
	db *sql.DB
}

var _ warnings.Store = (*WarningStore)(nil)

func (s *WarningStore) GetAccumulator(ctx context.Context, user, guild int64) (*warnings.Accumulator, error) {
	var a warnings.Accumulator
	var givens string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, guild_id, count, givens FROM warnings
		WHERE guild_id = ? AND user_id = ?
	`, guild, user).Scan(&a.User, &a.Guild, &a.Count, &givens)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(givens), &a.Givens); err != nil {
		return nil, fmt.Errorf("unmarshal givens: %w", err)
	}
	return &a, nil
}

func (s *WarningStore) PutAccumulator(ctx context.Context, a *warnings.Accumulator) error {
	givens, err := json.Marshal(a.Givens)
	if err != nil {
		return fmt.Errorf("marshal givens: %w", err)
	}
	if a.Givens == nil {
		givens = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, count, givens)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count  = excluded.count,
			givens = excluded.givens
	`, a.Guild, a.User, a.Count, string(givens))
	return err
}

func (s *WarningStore) DeleteAccumulator(ctx context.Context, user, guild int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`, guild, user)
	return err
}

func (s *WarningStore) ListAccumulators(ctx context.Context) ([]warnings.Accumulator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, guild_id, count, givens FROM warnings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []warnings.Accumulator
	for rows.Next() {
		var a warnings.Accumulator
		var givens string
		if err := rows.Scan(&a.User, &a.Guild, &a.Count, &givens); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(givens), &a.Givens); err != nil {
			return nil, fmt.Errorf("unmarshal givens: %w", err)
		}
		all = append(all, a)
	}
	return all, rows.Err()
}
