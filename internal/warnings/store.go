package warnings

import "context"

// Store defines the persistence interface for warning accumulators.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetAccumulator returns the accumulator for (user, guild), or nil if
	// none exists.
	GetAccumulator(ctx context.Context, user, guild int64) (*Accumulator, error)

	// PutAccumulator writes the accumulator, replacing any existing state.
	PutAccumulator(ctx context.Context, a *Accumulator) error

	// DeleteAccumulator removes the accumulator for (user, guild).
	// Deleting an absent accumulator is a no-op.
	DeleteAccumulator(ctx context.Context, user, guild int64) error

	// ListAccumulators returns every stored accumulator.
	ListAccumulators(ctx context.Context) ([]Accumulator, error)
}
