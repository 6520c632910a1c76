package roles

import (
	"context"
	"time"
)

// Store defines the persistence interface for role requests and removals.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateRequest inserts a request and assigns the next id. It fails with
	// moderr.ErrConflict if the user already has an open request in the
	// guild; the check and the insert are one atomic step.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest returns the request with the given id, or
	// moderr.ErrNotFound.
	GetRequest(ctx context.Context, id int64) (*Request, error)

	// OpenRequest returns the user's open request in the guild, or nil.
	OpenRequest(ctx context.Context, user, guild int64) (*Request, error)

	// MutateRequest loads the request, applies mutate and persists the
	// result; the read, the mutation and the write are one atomic step, so
	// guards inside mutate cannot be raced by a concurrent writer. An error
	// from mutate aborts the write and is returned unchanged. Returns the
	// request as persisted, or moderr.ErrNotFound.
	MutateRequest(ctx context.Context, id int64, mutate func(r *Request) error) (*Request, error)

	// IsLastRequest reports whether no newer request exists for the same
	// user and guild.
	IsLastRequest(ctx context.Context, id, user, guild int64) (bool, error)

	// RequestsByUser returns the user's requests in a guild, oldest first.
	RequestsByUser(ctx context.Context, user, guild int64) ([]Request, error)

	// RequestsByModerator returns the moderator's counted decisions in a
	// guild within [from, to].
	RequestsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]Request, error)

	// CountOpenRequests returns how many requests await a decision.
	CountOpenRequests(ctx context.Context) (int, error)

	// CreateRemoval inserts a removal record and assigns the next id.
	CreateRemoval(ctx context.Context, r *Removal) error

	// RemovalsByModerator returns the moderator's removals in a guild within
	// [from, to].
	RemovalsByModerator(ctx context.Context, guild, moderator int64, from, to time.Time) ([]Removal, error)
}
