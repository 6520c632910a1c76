package roles

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/dispatch"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

// Service owns the role request lifecycle. Decisions are recorded in the
// ledger as non-counting acts so a subject's history includes them, pushed
// to the platform through the enforcer and announced to watchers.
type Service struct {
	store    Store
	ledger   *actions.Ledger
	enforcer dispatch.Enforcer
	notifier dispatch.Notifier
}

// NewService creates the roles service.
func NewService(store Store, ledger *actions.Ledger, enforcer dispatch.Enforcer, notifier dispatch.Notifier) *Service {
	return &Service{store: store, ledger: ledger, enforcer: enforcer, notifier: notifier}
}

// SubmitParams describes a new role request.
type SubmitParams struct {
	User     int64
	Guild    int64
	Nickname string
	Role     string
	Rank     int
	Message  int64
}

// Submit files a role request. Fails with ErrConflict if the user already
// has an open request in the guild.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Request, error) {
	r := &Request{
		User:     p.User,
		Guild:    p.Guild,
		Nickname: p.Nickname,
		Role:     p.Role,
		Rank:     p.Rank,
		Message:  p.Message,
		Counting: true,
		SentAt:   time.Now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}

	metrics.RoleRequestsTotal.Inc()
	log.Info().
		Int64("request", r.ID).
		Int64("user", r.User).
		Int64("guild", r.Guild).
		Str("role", r.Role).
		Msg("roles: request submitted")
	return r, nil
}

// Claim assigns a new request to a moderator. Fails with ErrConflict if the
// request is already claimed or decided. The claim guard runs inside the
// store's write transaction, so of two racing claims exactly one lands.
func (s *Service) Claim(ctx context.Context, id, moderator int64) (*Request, error) {
	return s.store.MutateRequest(ctx, id, func(r *Request) error {
		if r.Status() != StatusNew {
			return moderr.Conflictf("request %d is %s", id, r.Status())
		}
		r.Moderator = moderator
		r.TakenAt = time.Now().UTC()
		return nil
	})
}

// Resolve decides a claimed request. Only the claiming moderator may decide;
// anyone else fails with ErrForbidden. An already-decided request fails with
// ErrConflict.
func (s *Service) Resolve(ctx context.Context, id, moderator int64, approve bool, reason string) (*Request, error) {
	r, err := s.store.MutateRequest(ctx, id, func(r *Request) error {
		if !r.Open() {
			return moderr.Conflictf("request %d already decided", id)
		}
		if r.Moderator == 0 || r.Moderator != moderator {
			return moderr.Forbiddenf("request %d is claimed by another moderator", id)
		}
		r.Approved = approve
		r.CheckedAt = time.Now().UTC()
		r.Reason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := actions.RoleApprove
	outcome := "approve"
	if !approve {
		kind = actions.RoleReject
		outcome = "reject"
	}
	act, err := s.ledger.Record(ctx, actions.RecordParams{
		User:       r.User,
		Guild:      r.Guild,
		Moderator:  moderator,
		Kind:       kind,
		Reason:     reason,
		AutoReview: true,
	})
	if err != nil {
		return nil, err
	}

	// Platform grant and event delivery never unwind the decision.
	if approve {
		if err := s.enforcer.GrantRole(ctx, r.User, r.Guild, r.Role, r.Nickname); err != nil {
			log.Error().Err(err).Int64("request", id).Msg("roles: role grant failed after approval")
		}
	}
	s.notifier.Publish(dispatch.Event{
		Type:      dispatch.EventRoleDecided,
		At:        time.Now().UTC(),
		User:      r.User,
		Guild:     r.Guild,
		Moderator: moderator,
		Kind:      kind.String(),
		Act:       act.ID,
		Reason:    reason,
	})

	metrics.RoleDecisionsTotal.WithLabelValues(outcome).Inc()
	log.Info().
		Int64("request", id).
		Int64("moderator", moderator).
		Bool("approved", approve).
		Msg("roles: request decided")
	return r, nil
}

// Revisit lets a second-line reviewer confirm or overturn a decision. With
// approve the decision stands as-is; without it the outcome flips, keeping
// the original rejection reason when a rejection becomes an approval. A
// partial revisit leaves the outcome but stops the decision counting toward
// the moderator's work. Fails with ErrConflict on undecided or
// already-revisited requests.
func (s *Service) Revisit(ctx context.Context, id, reviewer int64, approve bool, reason string, partial bool) (*Request, error) {
	r, err := s.store.MutateRequest(ctx, id, func(r *Request) error {
		if r.Open() {
			return moderr.Conflictf("request %d not yet decided", id)
		}
		if r.Reviewer != 0 {
			return moderr.Conflictf("request %d already revisited", id)
		}

		r.Reviewer = reviewer
		if !approve {
			if r.Approved {
				r.Approved = false
				r.Reason = reason
			} else {
				r.Approved = true
				r.ReviewReason = reason
			}
		}
		if partial {
			r.Counting = false
			r.ReviewReason = reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "upheld"
	if !approve {
		outcome = "overturned"
	}
	metrics.ReviewsTotal.WithLabelValues(outcome).Inc()
	log.Info().
		Int64("request", id).
		Int64("reviewer", reviewer).
		Str("outcome", outcome).
		Bool("partial", partial).
		Msg("roles: request revisited")
	return r, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id int64) (*Request, error) {
	return s.store.GetRequest(ctx, id)
}

// Open returns the user's open request in a guild, or nil.
func (s *Service) Open(ctx context.Context, user, guild int64) (*Request, error) {
	return s.store.OpenRequest(ctx, user, guild)
}

// IsLast reports whether a request is the user's most recent one in the
// guild, so stale status views can be detected.
func (s *Service) IsLast(ctx context.Context, id, user, guild int64) (bool, error) {
	return s.store.IsLastRequest(ctx, id, user, guild)
}

// RemoveRoles records a bulk role strip and its ledger act.
func (s *Service) RemoveRoles(ctx context.Context, user, guild, moderator int64, names []string) (*Removal, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	rm := &Removal{
		User:      user,
		Guild:     guild,
		Roles:     sorted,
		At:        time.Now().UTC(),
		Moderator: moderator,
	}
	if err := s.store.CreateRemoval(ctx, rm); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Record(ctx, actions.RecordParams{
		User:       user,
		Guild:      guild,
		Moderator:  moderator,
		Kind:       actions.RoleRemove,
		AutoReview: true,
	}); err != nil {
		return nil, err
	}

	log.Info().
		Int64("removal", rm.ID).
		Int64("user", user).
		Int64("moderator", moderator).
		Strs("roles", sorted).
		Msg("roles: roles removed")
	return rm, nil
}

// ModeratorWork returns the moderator's counted decisions and removals in a
// guild within [from, to].
func (s *Service) ModeratorWork(ctx context.Context, guild, moderator int64, from, to time.Time) ([]Request, []Removal, error) {
	reqs, err := s.store.RequestsByModerator(ctx, guild, moderator, from, to)
	if err != nil {
		return nil, nil, err
	}
	rms, err := s.store.RemovalsByModerator(ctx, guild, moderator, from, to)
	if err != nil {
		return nil, nil, err
	}
	return reqs, rms, nil
}

// RoleHistory returns the user's requests in a guild, oldest first.
func (s *Service) RoleHistory(ctx context.Context, user, guild int64) ([]Request, error) {
	return s.store.RequestsByUser(ctx, user, guild)
}

// NicknameHistory returns the distinct nicknames the user has applied under
// in a guild.
func (s *Service) NicknameHistory(ctx context.Context, user, guild int64) ([]string, error) {
	reqs, err := s.store.RequestsByUser(ctx, user, guild)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(reqs))
	var names []string
	for _, r := range reqs {
		if _, ok := seen[r.Nickname]; ok {
			continue
		}
		seen[r.Nickname] = struct{}{}
		names = append(names, r.Nickname)
	}
	return names, nil
}

// PendingCount returns how many requests await a decision, for the gauge
// collector.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.store.CountOpenRequests(ctx)
}
