package sanctions

import (
	"context"

	"tangled.org/vigil.community/vigil/internal/actions"
)

// Store defines the persistence interface for active sanctions.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateSanction inserts a sanction if and only if no row exists for its
	// key, in one atomic step, and fails with moderr.ErrConflict otherwise.
	// The existence check and the insert must not be separable operations.
	CreateSanction(ctx context.Context, s *Sanction) error

	// GetSanction returns the active sanction for a key, or nil if none.
	GetSanction(ctx context.Context, key string) (*Sanction, error)

	// DeleteSanction removes the row for a key and reports whether a row was
	// deleted. Deleting an absent key returns false without error; under an
	// expiry/remove race exactly one caller sees true.
	DeleteSanction(ctx context.Context, key string) (bool, error)

	// ListSanctions returns all active sanctions of one family.
	ListSanctions(ctx context.Context, family actions.Family) ([]Sanction, error)

	// SanctionsByUser returns all active sanctions against a user across
	// families and guilds.
	SanctionsByUser(ctx context.Context, user int64) ([]Sanction, error)
}
