package actions

import (
	"context"
	"time"
)

// UserQuery filters ActsByUser scans.
type UserQuery struct {
	// Guild restricts results to one guild when non-zero.
	Guild int64

	// CountingOnly drops acts whose counting flag was cleared by review.
	CountingOnly bool

	// After drops acts recorded at or before the given instant when non-zero.
	After time.Time
}

// ModeratorQuery filters ActsByModerator scans.
type ModeratorQuery struct {
	Guild int64
	From  time.Time
	To    time.Time
}

// Store defines the persistence interface for the action ledger.
// Implementations must be safe for concurrent use. The ledger is the sole
// writer of action records.
type Store interface {
	// CreateAct persists a new act, assigning the next monotonic ID.
	// The assigned ID is written back into act.ID and never reused.
	CreateAct(ctx context.Context, act *Act) error

	GetAct(ctx context.Context, id int64) (*Act, error)

	// LastActive returns the most recent still-active act of the given kind
	// for (user, guild), or nil if none exists. A zero guild matches any
	// guild, for kinds whose enforcement spans them all.
	LastActive(ctx context.Context, user, guild int64, kind Kind) (*Act, error)

	// SetReviewer records the resolving reviewer on an act.
	SetReviewer(ctx context.Context, id, reviewer int64) error

	// DeactivateAct closes an act: active and counting are cleared, and the
	// reviewer is recorded if the act was unreviewed.
	DeactivateAct(ctx context.Context, id, reviewer int64) error

	// SetProveLink attaches an evidence link to an act.
	SetProveLink(ctx context.Context, id int64, link string) error

	ActsByUser(ctx context.Context, user int64, q UserQuery) ([]Act, error)
	ActsByModerator(ctx context.Context, moderator int64, q ModeratorQuery) ([]Act, error)

	// ActsByGuild returns all acts recorded in a guild, used by the repeated
	// moderator/subject pair aggregation.
	ActsByGuild(ctx context.Context, guild int64) ([]Act, error)
}
